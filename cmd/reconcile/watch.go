package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-reconciler/internal/ingest"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <root>...",
		Short: "Reconcile files as they appear under one or more directories",
		Long: `Watch directories recursively and reconcile each supported file once it has
stopped changing for the debounce interval. One JSON result is printed per file.
Stops on SIGINT or SIGTERM.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}
	addIngestFlags(cmd)
	cmd.Flags().Bool("initial-scan", false, "also reconcile files already present")
	cmd.Flags().Bool("skip-hidden", true, "skip dot files and dot directories")
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "quiet period before a changed file is processed")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	initial, _ := cmd.Flags().GetBool("initial-scan")
	skipHidden, _ := cmd.Flags().GetBool("skip-hidden")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	ctx := cmd.Context()
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       args,
		InitialScan: initial,
		SkipHidden:  skipHidden,
		Debounce:    debounce,
	}, slog.Default())
	if err != nil {
		return err
	}
	slog.Info("watch.started", "roots", args)

	ing := ingest.NewFSIngestor(a.Pipeline, slog.Default(), ingestOptions(cmd, a)...)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				slog.Info("watch.stopped")
				return nil
			}
			res, err := ing.IngestPath(ctx, user, path)
			if err != nil {
				slog.Warn("watch.file.skipped", "path", path, "error", err)
				continue
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
		case err, ok := <-errs:
			if ok {
				slog.Warn("watch.error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}
