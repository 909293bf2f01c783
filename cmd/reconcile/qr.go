package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "qr <payload>",
		Short:   "Reconcile a QR payment string",
		Example: `  reconcile qr 'upi://pay?pa=shop@upi&pn=Corner%20Shop&am=120.00&tr=TXN123456'`,
		Args:    cobra.ExactArgs(1),
		RunE:    runQR,
	}
	addIngestFlags(cmd)
	return cmd
}

type qrOutput struct {
	Candidate *entity.TransactionCandidate `json:"candidate"`
	ExpenseID string                       `json:"expense_id,omitempty"`
}

func runQR(cmd *cobra.Command, args []string) error {
	user, err := userID(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.Pipeline.ReconcileQR(cmd.Context(), args[0], user)
	if err != nil {
		return err
	}
	out := qrOutput{Candidate: c}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	block, _ := cmd.Flags().GetBool("block-duplicates")
	switch {
	case dryRun:
	case block && c.DuplicateOf != nil:
		slog.Info("qr.persist.duplicate_blocked", "duplicate_of", c.DuplicateOf.ExpenseID)
	default:
		id, err := a.Expenses.Persist(cmd.Context(), c)
		if err != nil {
			return err
		}
		out.ExpenseID = id.String()
	}
	return printJSON(cmd, out)
}
