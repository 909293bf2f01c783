package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

const usageTable = "usage_stats"

// MemoryUsageStore keeps per-user counters in process memory. Updates to one
// user are serialized by a single mutex.
type MemoryUsageStore struct {
	mu    sync.Mutex
	stats map[uuid.UUID]entity.UsageStats
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{stats: make(map[uuid.UUID]entity.UsageStats)}
}

func (m *MemoryUsageStore) Record(_ context.Context, userID uuid.UUID, accepted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats[userID]
	s.UserID = userID
	s.Processed++
	if accepted {
		s.Accepted++
	} else {
		s.Rejected++
	}
	m.stats[userID] = s
	return nil
}

func (m *MemoryUsageStore) Usage(_ context.Context, userID uuid.UUID) (entity.UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[userID]
	if !ok {
		return entity.UsageStats{UserID: userID}, nil
	}
	return s, nil
}

// SQLUsageStore keeps counters in the usage_stats table. Each Record is one
// INSERT ... ON CONFLICT DO UPDATE statement, so concurrent increments never
// overwrite each other.
type SQLUsageStore struct {
	db     *DB
	logger *slog.Logger
}

func NewSQLUsageStore(db *DB, logger *slog.Logger) *SQLUsageStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLUsageStore{db: db, logger: logger}
}

func (s *SQLUsageStore) Record(ctx context.Context, userID uuid.UUID, accepted bool) error {
	var acc, rej int64
	if accepted {
		acc = 1
	} else {
		rej = 1
	}
	query, args := entsql.Dialect(s.db.Dialect).
		Insert(usageTable).
		Columns("user_id", "processed", "accepted", "rejected").
		Values(userID, 1, acc, rej).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add("processed", 1)
				u.Add("accepted", acc)
				u.Add("rejected", rej)
			}),
		).
		Query()

	if _, err := s.db.SQL.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("repository.usage.record_failed", "user_id", userID, "error", err)
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (s *SQLUsageStore) Usage(ctx context.Context, userID uuid.UUID) (entity.UsageStats, error) {
	b := entsql.Dialect(s.db.Dialect)
	query, args := b.Select("processed", "accepted", "rejected").
		From(b.Table(usageTable)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	st := entity.UsageStats{UserID: userID}
	err := s.db.SQL.QueryRowContext(ctx, query, args...).Scan(&st.Processed, &st.Accepted, &st.Rejected)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read usage: %w", err)
	}
	return st, nil
}
