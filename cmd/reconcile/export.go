package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored expenses to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().StringP("out", "o", "expenses.xlsx", "output XLSX file path")
	cmd.Flags().String("from", "", "from date YYYY-MM-DD")
	cmd.Flags().String("to", "", "to date YYYY-MM-DD")
	return cmd
}

func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date format, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.Exporter.ExpensesXLSX(cmd.Context(), user, from, to)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	slog.Info("export.written", "path", out, "bytes", len(b))
	return nil
}
