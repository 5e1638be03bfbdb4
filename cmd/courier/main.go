package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/logger"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "courier",
		Short: "Topic authorization and message routing engine",
		Long:  "Courier authorizes broker connections per tenant and routes accepted messages through rules or integration pipelines",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization hooks and the message router",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					return fmt.Errorf("config file is required, use --config or CONFIG_FILE")
				}
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Infow("Starting courier", "mode", cfg.Routing.Mode)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			log.Infow("Courier running", "port", cfg.Server.Port)
			if err := app.Run(ctx); err != nil && err != context.Canceled {
				log.Errorw("Service stopped with error", "error", err)
				return err
			}

			if err := app.Shutdown(context.Background()); err != nil {
				log.Warnw("Shutdown finished with errors", "error", err)
			}
			log.Infow("Shutdown complete")
			return nil
		},
	}
}
