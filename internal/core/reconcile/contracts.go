package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/internal/core/ocr"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// TextExtractor turns artifact bytes into text. It must not return errors; failures
// are reported through ExtractionResult.Err.
type TextExtractor interface {
	Extract(ctx context.Context, a entity.RawArtifact) ocr.ExtractionResult
}

// HistoryProvider reads a user's prior transactions inside a window.
type HistoryProvider interface {
	RecentTransactions(ctx context.Context, userID uuid.UUID, window entity.TimeWindow) ([]entity.HistoryRecord, error)
}

// ExpenseSink persists accepted candidates. Called by callers of the pipeline, never by it.
type ExpenseSink interface {
	Persist(ctx context.Context, c *entity.TransactionCandidate) (uuid.UUID, error)
}

// UsageStore keeps per-user processing counters. Record must be atomic per user.
type UsageStore interface {
	Record(ctx context.Context, userID uuid.UUID, accepted bool) error
	Usage(ctx context.Context, userID uuid.UUID) (entity.UsageStats, error)
}
