package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-reconciler/internal/ingest"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <archive.zip>",
		Short: "Reconcile every entry of a ZIP archive",
		Long: `Reconcile each entry of a ZIP archive independently. One bad entry never
fails the others; rejected entries are listed with their reason. With --out the
report is also written as an XLSX workbook.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}
	addIngestFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "write the batch report to this XLSX file")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return fmt.Errorf("%s is not a .zip archive", path)
	}
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
	res, err := ing.IngestPath(cmd.Context(), user, path)
	if err != nil {
		return err
	}
	if res.Failed() {
		_ = printJSON(cmd, res)
		return fmt.Errorf("batch failed: %s", res.Err)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		b, err := a.Exporter.BatchReportXLSX(res.Batch)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		slog.Info("batch.report.written", "path", out)
	}
	return printJSON(cmd, res)
}
