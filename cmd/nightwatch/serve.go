package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/amaumene/nightwatch/internal/config"
	"github.com/amaumene/nightwatch/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poll loop and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFile, cfg.LogJSON)
	return cfg, logger, nil
}

func runServe(parent context.Context) error {
	// 1. Load configuration and setup logger
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	logger.Info().Msg("Starting NightWatcher")
	logger.Info().Str("config_dir", cfg.ConfigDir).Msg("Configuration loaded")

	// 2. Acquire the instance lock
	lock, err := acquireLock(cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release lock")
		}
	}()

	// 3. Setup tracing
	_, shutdownTracing := utils.NewTracerProvider(cfg.TracingEnabled, cfg.TracingSampleRatio)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// 4. Build the application graph
	app, cleanup, err := initializeApp(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	logger.Info().Msg("Services initialized")

	// 5. Start notification workers
	app.Queue.Start(context.Background())

	// 6. Start scheduler
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	app.Scheduler.Start(ctx)

	// 7. Start HTTP server
	serverErrChan := make(chan error, 1)
	go func() {
		if err := app.Server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info().Dur("interval", cfg.PollInterval).Msg("NightWatcher is running")

	var runErr error
	select {
	case err := <-serverErrChan:
		runErr = err
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-parent.Done():
	}

	// 9. Shutdown: stop taking work, then drain notifications
	cancel()
	app.Scheduler.Stop()
	if err := app.Server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	if err := app.Queue.Stop(drainCtx); err != nil {
		logger.Warn().Err(err).Int("pending", app.Queue.Pending()).Msg("Notification queue not drained")
	}

	logger.Info().Msg("NightWatcher stopped")
	return runErr
}
