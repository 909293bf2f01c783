package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-reconciler/internal/ingest"
)

func dirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dir <root>",
		Short: "Reconcile every supported file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runDir,
	}
	addIngestFlags(cmd)
	cmd.Flags().Int("workers", 4, "number of files reconciled concurrently")
	cmd.Flags().Duration("timeout", 3*time.Minute, "per-file processing timeout")
	cmd.Flags().Bool("skip-hidden", true, "skip dot files and dot directories")
	return cmd
}

type dirOutput struct {
	Stats   ingest.DirStats     `json:"stats"`
	Results []ingest.FileResult `json:"results"`
}

func runDir(cmd *cobra.Command, args []string) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	workers, _ := cmd.Flags().GetInt("workers")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	skipHidden, _ := cmd.Flags().GetBool("skip-hidden")

	opts := append(ingestOptions(cmd, a), ingest.WithWorkers(workers), ingest.WithTimeout(timeout))
	ing := ingest.NewFSIngestor(a.Pipeline, slog.Default(), opts...)

	results, stats, err := ing.IngestDirectory(cmd.Context(), user, args[0], skipHidden)
	if err != nil {
		return err
	}
	return printJSON(cmd, dirOutput{Stats: stats, Results: results})
}
