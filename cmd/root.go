package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zlnvch/layerdeck/config"
)

var (
	configPath string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "layerdeck",
	Short: "Layered image composition service",
	Long: "layerdeck serves designs made of stacked image layers.\n" +
		"Editing sessions run over a websocket; designs, layers and assets over REST.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	return err
}
