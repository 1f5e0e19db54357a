package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/modkit/internal/adapters/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the mods root and rescan on changes",
	Long: `Watch performs an initial scan, then rescans whenever the mods root
changes on disk. Runs until interrupted.

Examples:
  modkit watch
  modkit watch --root ./mods`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close(context.Background())

	rescan := func(ctx context.Context) {
		resolution, err := a.service.Scan(ctx)
		if err != nil {
			printError(err)
			return
		}
		if resolution.HasProblems() {
			printResolution(resolution)
		}
	}
	rescan(ctx)

	w, err := watch.New(a.cfg.ModsRoot, a.cfg.Watch.Debounce, rescan, a.logger)
	if err != nil {
		printError(err)
		return err
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		printError(err)
		return err
	}
	return nil
}
