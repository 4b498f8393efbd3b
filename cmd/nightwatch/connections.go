package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const connectionTestMessage = "🌙 <b>NightWatcher</b>\n\nConnection test"

// probe is one named connectivity check
type probe struct {
	name string
	run  func(ctx context.Context) error
}

func newCheckConnectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-connections",
		Short: "Check database, Prowlarr and Telegram connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			app, cleanup, err := initializeApp(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			probes := []probe{
				{name: "database", run: app.DB.Ping},
				{name: "prowlarr", run: func(ctx context.Context) error {
					_, err := app.Prowlarr.SearchByQuery(ctx, "test")
					return err
				}},
				{name: "telegram", run: func(ctx context.Context) error {
					if !app.Telegram.Send(ctx, connectionTestMessage, "", "") {
						return errors.New("test message was not delivered")
					}
					return nil
				}},
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			return runProbes(ctx, cmd.OutOrStdout(), probes)
		},
	}
}

// runProbes runs every probe concurrently and reports each result in order.
// It fails if any probe failed.
func runProbes(ctx context.Context, out io.Writer, probes []probe) error {
	results := make([]error, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = p.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, p := range probes {
		if results[i] != nil {
			failed++
			fmt.Fprintf(out, "❌ %s: %v\n", p.name, results[i])
			continue
		}
		fmt.Fprintf(out, "✅ %s: OK\n", p.name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d connection checks failed", failed, len(probes))
	}
	return nil
}
