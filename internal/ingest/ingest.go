package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/reconcile"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Path       string                       `json:"path"`
	Candidate  *entity.TransactionCandidate `json:"candidate,omitempty"`
	Batch      *entity.BatchReport          `json:"batch,omitempty"`
	ExpenseIDs []uuid.UUID                  `json:"expense_ids,omitempty"`
	Reason     constants.FailureReason      `json:"reason,omitempty"`
	Err        string                       `json:"error,omitempty"`
}

// Failed reports whether the file produced nothing.
func (r FileResult) Failed() bool { return r.Err != "" }

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32 `json:"scanned"`
	Matched   uint32 `json:"matched"`
	Succeeded uint32 `json:"succeeded"`
	Persisted uint32 `json:"persisted"`
	Failed    uint32 `json:"failed"`
}

// Reconciler is the pipeline entry point the ingestor drives.
type Reconciler interface {
	Ingest(ctx context.Context, a entity.RawArtifact, userID uuid.UUID) (*reconcile.Outcome, error)
}

// Ingestor is the behavior the CLI depends on.
type Ingestor interface {
	// IngestPath reconciles a single file.
	IngestPath(ctx context.Context, userID uuid.UUID, path string) (FileResult, error)
	// IngestDirectory reconciles all matching files under root.
	IngestDirectory(ctx context.Context, userID uuid.UUID, root string, skipHidden bool) ([]FileResult, DirStats, error)
}
