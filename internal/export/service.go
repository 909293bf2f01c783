package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

const (
	SheetAccepted = "Accepted"
	SheetRejected = "Rejected"
	SheetExpenses = "Expenses"
)

// ExpenseLister is the slice of the expense repository the exporter reads.
type ExpenseLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Expense, error)
}

// Service produces XLSX bytes for batch outcomes and stored expenses.
type Service struct {
	expenses ExpenseLister
	logger   *slog.Logger
}

func NewService(expenses ExpenseLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{expenses: expenses, logger: logger}
}

// BatchReportXLSX writes one row per accepted candidate and one per rejected entry.
func (s *Service) BatchReportXLSX(rep *entity.BatchReport) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("batch report is nil")
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	acc := newSheet(f, SheetAccepted, []string{
		"Origin", "Amount", "Date", "Time", "Merchant", "Handle", "Reference",
		"Confidence", "Strategy", "Duplicate Of", "Anomalies",
	})
	for _, c := range rep.Accepted {
		p := c.Parsed
		dup := ""
		if c.DuplicateOf != nil {
			dup = c.DuplicateOf.ExpenseID.String()
		}
		anomalies := make([]string, 0, len(c.Anomalies))
		for _, k := range c.Anomalies.Sorted() {
			anomalies = append(anomalies, string(k))
		}
		acc.row(
			c.Diagnostics.OriginName, amountString(p), dateString(p.Date), clockString(p.Time),
			p.MerchantName, p.CounterpartyHandle, p.TransactionRef,
			c.Confidence, string(c.Strategy), dup, strings.Join(anomalies, ", "),
		)
	}

	rej := newSheet(f, SheetRejected, []string{"Entry", "Reason", "Message"})
	for _, r := range rep.Rejected {
		rej.row(r.EntryName, string(r.Reason), truncate(r.Message, 140))
	}

	if err := acc.err; err != nil {
		return nil, err
	}
	if err := rej.err; err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(SheetAccepted); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.batch.ok",
		"total", rep.TotalEntries,
		"accepted", len(rep.Accepted),
		"rejected", len(rep.Rejected),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExpensesXLSX returns a workbook of the user's stored expenses in a date window.
// If only from is provided -> from..today (inclusive).
// If neither is provided   -> all expenses for the user.
func (s *Service) ExpensesXLSX(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		d := entity.DateOnly(*from)
		fromDate = &d
	}
	if to != nil {
		// inclusive of the whole day
		d := entity.DateOnly(*to).Add(24*time.Hour - time.Second)
		toDate = &d
	}
	if fromDate != nil && toDate == nil {
		d := entity.DateOnly(time.Now()).Add(24*time.Hour - time.Second)
		toDate = &d
	}

	exps, err := s.expenses.ListByUser(ctx, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sh := newSheet(f, SheetExpenses, []string{
		"Transaction Date", "Time", "Merchant", "Amount", "Handle", "Reference", "Notes", "Origin",
	})
	for _, e := range exps {
		item := e.MerchantName
		if item == "" {
			item = "—"
		}
		sh.row(
			dateString(e.TxDate), clockString(e.TxTime), item, e.Amount.StringFixed(2),
			e.CounterpartyHandle, e.TransactionRef, truncate(e.Description, 140), e.OriginName,
		)
	}
	if sh.err != nil {
		return nil, sh.err
	}
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetColWidth(SheetExpenses, "A", "B", 14)
	_ = f.SetColWidth(SheetExpenses, "C", "C", 28)
	_ = f.SetColWidth(SheetExpenses, "D", "D", 14)
	_ = f.SetColWidth(SheetExpenses, "E", "F", 24)
	_ = f.SetColWidth(SheetExpenses, "G", "H", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"user_id", userID.String(),
		"rows", len(exps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f    *excelize.File
	name string
	next int
	err  error
}

func newSheet(f *excelize.File, name string, headers []string) *sheetWriter {
	w := &sheetWriter{f: f, name: name, next: 1}
	if _, err := f.NewSheet(name); err != nil {
		w.err = fmt.Errorf("new sheet %s: %w", name, err)
		return w
	}
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	w.row(cells...)
	return w
}

func (w *sheetWriter) row(values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, w.next)
	if err == nil {
		err = w.f.SetSheetRow(w.name, cell, &values)
	}
	if err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", w.name, w.next, err)
		return
	}
	w.next++
}

func amountString(p entity.ParsedFields) string {
	if p.Amount == nil {
		return ""
	}
	return p.Amount.StringFixed(2)
}

func dateString(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(time.DateOnly)
}

func clockString(t *entity.ClockTime) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
