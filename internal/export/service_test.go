package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

type fakeLister struct {
	userID   uuid.UUID
	from, to *time.Time
	out      []*entity.Expense
	err      error
}

func (f *fakeLister) ListByUser(_ context.Context, userID uuid.UUID, from, to *time.Time) ([]*entity.Expense, error) {
	f.userID, f.from, f.to = userID, from, to
	return f.out, f.err
}

func open(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestBatchReportXLSX(t *testing.T) {
	amt := decimal.RequireFromString("500")
	d := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	prior := uuid.New()
	anomalies := entity.AnomalySet{}
	anomalies.Add(constants.NovelMerchant)
	anomalies.Add(constants.AmountOutlier)

	rep := &entity.BatchReport{
		TotalEntries: 2,
		Accepted: []entity.TransactionCandidate{{
			Parsed:      entity.ParsedFields{Amount: &amt, Date: &d, MerchantName: "Chai Point"},
			Confidence:  85,
			Strategy:    constants.StrategyOCR,
			DuplicateOf: &entity.TransactionRef{ExpenseID: prior, Score: 0.91},
			Anomalies:   anomalies,
			Diagnostics: entity.Diagnostics{OriginName: "a.png"},
		}},
		Rejected: []entity.RejectedEntry{{EntryName: "b.png", Reason: constants.ReasonMalformedArchiveEntry, Message: "checksum"}},
	}

	b, err := NewService(nil, nil).BatchReportXLSX(rep)
	require.NoError(t, err)
	f := open(t, b)

	assert.Equal(t, []string{SheetAccepted, SheetRejected}, f.GetSheetList())

	rows, err := f.GetRows(SheetAccepted)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Origin", rows[0][0])
	assert.Equal(t, []string{"a.png", "500.00", "2024-03-10"}, rows[1][:3])
	assert.Equal(t, "Chai Point", rows[1][4])
	assert.Equal(t, "ocr", rows[1][8])
	assert.Equal(t, prior.String(), rows[1][9])
	assert.Equal(t, "AmountOutlier, NovelMerchant", rows[1][10])

	rows, err = f.GetRows(SheetRejected)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"b.png", "MalformedArchiveEntry", "checksum"}, rows[1])
}

func TestBatchReportXLSX_Nil(t *testing.T) {
	_, err := NewService(nil, nil).BatchReportXLSX(nil)
	assert.Error(t, err)
}

func TestExpensesXLSX(t *testing.T) {
	user := uuid.New()
	d := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{out: []*entity.Expense{{
		ID: uuid.New(), UserID: user, Amount: decimal.RequireFromString("1234.5"), TxDate: &d,
		TxTime: &entity.ClockTime{Hour: 14, Minute: 5}, CounterpartyHandle: "shop@upi", OriginName: "sms.txt",
	}}}

	from := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	b, err := NewService(lister, nil).ExpensesXLSX(context.Background(), user, &from, &to)
	require.NoError(t, err)

	assert.Equal(t, user, lister.userID)
	require.NotNil(t, lister.from)
	assert.True(t, lister.from.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, lister.to.Equal(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)))

	rows, err := open(t, b).GetRows(SheetExpenses)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-03-10", "14:05:00", "—", "1234.50", "shop@upi"}, rows[1][:5])
}

func TestExpensesXLSX_ListError(t *testing.T) {
	_, err := NewService(&fakeLister{err: errors.New("boom")}, nil).ExpensesXLSX(context.Background(), uuid.New(), nil, nil)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "₹₹…", truncate("₹₹₹₹", 3))
}
