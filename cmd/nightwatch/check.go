package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one poll cycle and print the number of new releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			lock, err := acquireLock(cfg.LockFile)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			app, cleanup, err := initializeApp(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			app.Queue.Start(context.Background())
			found, err := app.Scheduler.TriggerNow(cmd.Context())

			drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if stopErr := app.Queue.Stop(drainCtx); stopErr != nil {
				logger.Warn().Err(stopErr).Msg("Notification queue not drained")
			}
			if err != nil {
				return fmt.Errorf("check failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Found %d new releases\n", found)
			if last := app.Scheduler.LastSummary(); last != nil && last.Error != "" {
				return fmt.Errorf("cycle failed: %s", last.Error)
			}
			return nil
		},
	}
}
