package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-reconciler/internal/app"
	"github.com/joseph-ayodele/expense-reconciler/internal/ingest"
)

func fileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Reconcile a single artifact",
		Long: `Reconcile one receipt image, PDF, text file or ZIP bundle. The media type is
taken from the file extension. Accepted candidates are stored unless --dry-run
is set.`,
		Args: cobra.ExactArgs(1),
		RunE: runFile,
	}
	addIngestFlags(cmd)
	return cmd
}

func runFile(cmd *cobra.Command, args []string) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ing := ingest.NewFSIngestor(a.Pipeline, slog.Default(), ingestOptions(cmd, a)...)
	res, err := ing.IngestPath(cmd.Context(), user, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

// ingestOptions maps the shared --dry-run and --block-duplicates flags.
func ingestOptions(cmd *cobra.Command, a *app.App) []ingest.Option {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	block, _ := cmd.Flags().GetBool("block-duplicates")
	opts := []ingest.Option{ingest.WithBlockDuplicates(block)}
	if !dryRun {
		opts = append(opts, ingest.WithSink(a.Expenses))
	}
	return opts
}

func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "print candidates without storing them")
	cmd.Flags().Bool("block-duplicates", false, "do not store candidates flagged as duplicates")
}
