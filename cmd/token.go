package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zlnvch/layerdeck/service"
)

var (
	tokenSubject    string
	tokenProvider   string
	tokenProviderId string
	tokenLifetime   time.Duration
)

// tokenCmd issues an API token for scripts, signed with the configured secret
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for an owner",
	Long: `Issue a bearer token for an existing owner. The provider and provider id must
match the owner record, as they are checked on every request.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "owner id")
	tokenCmd.Flags().StringVar(&tokenProvider, "provider", "github", "identity provider of the owner")
	tokenCmd.Flags().StringVar(&tokenProviderId, "provider-id", "", "id of the owner at the provider")
	tokenCmd.Flags().DurationVar(&tokenLifetime, "ttl", 24*time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenSubject == "" || tokenProviderId == "" {
		return errors.New("--subject and --provider-id are required")
	}
	if tokenLifetime <= 0 {
		return errors.New("--ttl must be positive")
	}

	secret, err := cfg.JWTSecretBytes()
	if err != nil {
		return err
	}

	svc := &service.Service{JWTSecret: secret}
	token, err := svc.CreateJWTWithLifetime(tokenSubject, tokenProvider, tokenProviderId, tokenLifetime)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
