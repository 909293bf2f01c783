package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

const expensesTable = "expenses"

var expenseColumns = []string{
	"id", "user_id", "amount", "tx_date", "tx_time", "merchant_name", "counterparty_handle",
	"transaction_ref", "note", "raw_text", "confidence", "strategy", "duplicate_of",
	"origin_name", "occurred_at", "created_at",
}

// ExpenseRepository stores accepted candidates and serves history windows.
type ExpenseRepository interface {
	Persist(ctx context.Context, c *entity.TransactionCandidate) (uuid.UUID, error)
	RecentTransactions(ctx context.Context, userID uuid.UUID, window entity.TimeWindow) ([]entity.HistoryRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Expense, error)
}

type expenseRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewExpenseRepository(db *DB, logger *slog.Logger) ExpenseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &expenseRepository{db: db, logger: logger}
}

// Persist writes the candidate as an expense. The candidate ID becomes the expense ID.
func (r *expenseRepository) Persist(ctx context.Context, c *entity.TransactionCandidate) (uuid.UUID, error) {
	if c == nil || c.Parsed.Amount == nil {
		return uuid.Nil, common.NewAppError("INVALID_CANDIDATE", "candidate has no amount", common.ErrInvalidInput)
	}
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = dbTime(created)

	var txDate sql.NullTime
	occurred := created
	if c.Parsed.Date != nil {
		txDate = sql.NullTime{Time: dbTime(*c.Parsed.Date), Valid: true}
		occurred = txDate.Time
	}
	var txTime sql.NullString
	if c.Parsed.Time != nil {
		txTime = sql.NullString{String: c.Parsed.Time.String(), Valid: true}
	}
	var dup uuid.NullUUID
	if c.DuplicateOf != nil {
		dup = uuid.NullUUID{UUID: c.DuplicateOf.ExpenseID, Valid: true}
	}

	query, args := entsql.Dialect(r.db.Dialect).
		Insert(expensesTable).
		Columns(expenseColumns...).
		Values(
			id, c.UserID, c.Parsed.Amount.String(), txDate, txTime, c.Parsed.MerchantName, c.Parsed.CounterpartyHandle,
			c.Parsed.TransactionRef, c.Parsed.Note, c.Parsed.RawText, c.Confidence, string(c.Strategy), dup,
			c.Diagnostics.OriginName, occurred, created,
		).
		Query()

	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("repository.expense.persist_failed", "user_id", c.UserID, "error", err)
		return uuid.Nil, common.NewAppError("DB_ERROR", "persist expense", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Debug("repository.expense.persisted", "expense_id", id, "user_id", c.UserID)
	return id, nil
}

// RecentTransactions returns the user's expenses whose occurrence time falls in window.
func (r *expenseRepository) RecentTransactions(ctx context.Context, userID uuid.UUID, window entity.TimeWindow) ([]entity.HistoryRecord, error) {
	b := entsql.Dialect(r.db.Dialect)
	query, args := b.Select(expenseColumns...).
		From(b.Table(expensesTable)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.GTE("occurred_at", dbTime(window.From)),
			entsql.LTE("occurred_at", dbTime(window.To)),
		)).
		OrderBy(entsql.Desc("occurred_at")).
		Query()

	exps, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("repository.expense.history_failed", "user_id", userID, "error", err)
		return nil, err
	}
	out := make([]entity.HistoryRecord, len(exps))
	for i, e := range exps {
		out[i] = e.history()
	}
	return out, nil
}

func (r *expenseRepository) ListByUser(ctx context.Context, userID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Expense, error) {
	b := entsql.Dialect(r.db.Dialect)
	preds := []*entsql.Predicate{entsql.EQ("user_id", userID)}
	if fromDate != nil {
		preds = append(preds, entsql.GTE("occurred_at", dbTime(*fromDate)))
	}
	if toDate != nil {
		preds = append(preds, entsql.LTE("occurred_at", dbTime(*toDate)))
	}
	query, args := b.Select(expenseColumns...).
		From(b.Table(expensesTable)).
		Where(entsql.And(preds...)).
		OrderBy("occurred_at").
		Query()

	exps, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("repository.expense.list_failed", "user_id", userID, "error", err)
		return nil, err
	}
	out := make([]*entity.Expense, len(exps))
	for i := range exps {
		out[i] = exps[i].toEntity()
	}
	return out, nil
}

// expenseRow mirrors one row of the expenses table.
type expenseRow struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Amount             decimal.Decimal
	TxDate             sql.NullTime
	TxTime             sql.NullString
	MerchantName       string
	CounterpartyHandle string
	TransactionRef     string
	Note               string
	RawText            string
	Confidence         float64
	Strategy           string
	DuplicateOf        uuid.NullUUID
	OriginName         string
	OccurredAt         time.Time
	CreatedAt          time.Time
}

func (r *expenseRepository) query(ctx context.Context, query string, args []any) ([]expenseRow, error) {
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []expenseRow
	for rows.Next() {
		var e expenseRow
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Amount, &e.TxDate, &e.TxTime, &e.MerchantName, &e.CounterpartyHandle,
			&e.TransactionRef, &e.Note, &e.RawText, &e.Confidence, &e.Strategy, &e.DuplicateOf,
			&e.OriginName, &e.OccurredAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (e expenseRow) fields() entity.ParsedFields {
	amt := e.Amount
	p := entity.ParsedFields{
		Amount:             &amt,
		CounterpartyHandle: e.CounterpartyHandle,
		TransactionRef:     e.TransactionRef,
		MerchantName:       e.MerchantName,
		Note:               e.Note,
		RawText:            e.RawText,
	}
	if e.TxDate.Valid {
		d := entity.DateOnly(e.TxDate.Time.UTC())
		p.Date = &d
	}
	if e.TxTime.Valid {
		if ct, err := entity.ParseClockTime(e.TxTime.String); err == nil {
			p.Time = &ct
		}
	}
	return p
}

func (e expenseRow) history() entity.HistoryRecord {
	return entity.HistoryRecord{ExpenseID: e.ID, Fields: e.fields(), RecordedAt: e.CreatedAt.UTC()}
}

func (e expenseRow) toEntity() *entity.Expense {
	f := e.fields()
	out := &entity.Expense{
		ID:                 e.ID,
		UserID:             e.UserID,
		Amount:             e.Amount,
		TxDate:             f.Date,
		TxTime:             f.Time,
		MerchantName:       e.MerchantName,
		CounterpartyHandle: e.CounterpartyHandle,
		TransactionRef:     e.TransactionRef,
		Description:        e.Note,
		Strategy:           e.Strategy,
		Confidence:         e.Confidence,
		OriginName:         e.OriginName,
		CreatedAt:          e.CreatedAt.UTC(),
	}
	if e.DuplicateOf.Valid {
		id := e.DuplicateOf.UUID
		out.DuplicateOf = &id
	}
	return out
}

// dbTime normalizes times so both dialects compare them consistently.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
