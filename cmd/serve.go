package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/zlnvch/layerdeck/api"
	"github.com/zlnvch/layerdeck/api/ws"
	"github.com/zlnvch/layerdeck/cache/redis"
	"github.com/zlnvch/layerdeck/config"
	"github.com/zlnvch/layerdeck/engine"
	"github.com/zlnvch/layerdeck/mq/sqsmq"
	"github.com/zlnvch/layerdeck/service"
	"github.com/zlnvch/layerdeck/store/dynamo"
	"github.com/zlnvch/layerdeck/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and background workers",
	RunE:  runServe,
}

func oauthConfigs(cfg *config.Config) map[string]*oauth2.Config {
	configs := make(map[string]*oauth2.Config)
	if cfg.GithubClientID != "" {
		configs["github"] = &oauth2.Config{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
		}
	}
	if cfg.GoogleClientID != "" {
		configs["google"] = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
		}
	}
	return configs
}

func limits(cfg *config.Config) service.Limits {
	return service.Limits{
		MaxUploadBytes:     int64(cfg.MaxUploadMB) << 20,
		AllowedMimeTypes:   cfg.AllowedMimeTypes,
		MaxLayersPerDesign: cfg.MaxLayersPerDesign,
	}
}

func sessionOptions(cfg *config.Config) ws.SessionOptions {
	return ws.SessionOptions{
		Engine: engine.Options{
			AssetBaseURL:  cfg.AssetBaseURL,
			DefaultX:      cfg.DefaultLayerX,
			DefaultY:      cfg.DefaultLayerY,
			DefaultWidth:  cfg.DefaultLayerWidth,
			DefaultHeight: cfg.DefaultLayerHeight,
		},
		DebounceMillisecs: cfg.DebounceMS,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	layerdeckStore, err := dynamo.NewDynamoLayerdeckStore(ctx, cfg.DevMode, cfg.DynamoDBEndpoint, cfg.DynamoDBTable)
	if err != nil {
		log.Printf("Failed to create dynamodb store: %v", err)
		return err
	}

	deleteLayersQueue, err := sqsmq.NewSQSMessageQueue(ctx, cfg.DevMode, cfg.SQSEndpoint, cfg.DeleteLayersQueue)
	if err != nil {
		log.Printf("Failed to create SQS MQ: %v", err)
		return err
	}

	layerdeckCache, err := redis.NewRedisLayerdeckCache(ctx, cfg.DevMode, cfg.RedisEndpoint)
	if err != nil {
		log.Printf("Failed to create redis cache: %v", err)
		return err
	}

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		return err
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	touchBatcher := worker.NewTouchBatcher(layerdeckStore, cfg.TouchFlushMS)
	touchDone := make(chan struct{})
	go func() {
		touchBatcher.Run(shutdownCtx)
		close(touchDone)
	}()

	mqConsumer := worker.NewMQConsumer(deleteLayersQueue, layerdeckStore, layerdeckCache)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		layerdeckStore,
		layerdeckCache,
		deleteLayersQueue,
		touchBatcher,
		oauthConfigs(cfg),
		jwtSecret,
		cfg.UploadDir,
		limits(cfg),
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return err
	}

	layerdeckAPI, err := api.NewLayerdeckAPI(svc, sessionOptions(cfg), shutdownCtx)
	if err != nil {
		log.Printf("Failed to create layerdeck api: %v", err)
		return err
	}

	mux := http.NewServeMux()
	layerdeckAPI.RegisterRoutes(mux, cfg.AllowedOrigin)

	server := &http.Server{Addr: ":" + cfg.HostPort, Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on host port: %s", cfg.HostPort)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-shutdownCtx.Done():
	}

	log.Printf("Server shutting down...")
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Pending design touches are flushed on the way out
	select {
	case <-touchDone:
	case <-drainCtx.Done():
	}
	return nil
}
