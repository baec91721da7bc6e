package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/whartley/jobpulse"
	"github.com/whartley/jobpulse/config"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the jobpulse service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll configured jobs and serve the status API",
	Long: `Start the jobpulse service.

The service will:
  - Load configuration from the specified YAML file
  - Begin polling every configured watch against the backend
  - Serve job statuses on the configured port (JSON API + SSE)

The service runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  jobpulse serve -c config.yaml
  jobpulse serve --config /etc/jobpulse/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"backend", cfg.BackendURL,
		"watches", len(cfg.Watches),
	)
	logger.Info("starting service",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
		"max_ticks", cfg.MaxTicks,
	)

	opts := append(config.BuildOptions(cfg), jobpulse.WithLogger(logger))

	svc, err := jobpulse.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start service - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Start(ctx)
	}()

	// wait for the service to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("service error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("service error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
