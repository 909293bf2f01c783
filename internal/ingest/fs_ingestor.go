package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/internal/async"
	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/reconcile"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// FSIngestor reads artifacts from the local filesystem and runs them through the pipeline.
type FSIngestor struct {
	reconciler Reconciler
	sink       reconcile.ExpenseSink
	logger     *slog.Logger

	workers         int
	timeout         time.Duration
	blockDuplicates bool
}

type Option func(*FSIngestor)

// WithSink persists accepted candidates.
func WithSink(s reconcile.ExpenseSink) Option { return func(i *FSIngestor) { i.sink = s } }

// WithBlockDuplicates skips persisting candidates flagged as duplicates.
func WithBlockDuplicates(b bool) Option { return func(i *FSIngestor) { i.blockDuplicates = b } }

func WithWorkers(n int) Option { return func(i *FSIngestor) { i.workers = n } }

func WithTimeout(d time.Duration) Option { return func(i *FSIngestor) { i.timeout = d } }

func NewFSIngestor(r Reconciler, logger *slog.Logger, opts ...Option) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	i := &FSIngestor{reconciler: r, logger: logger, workers: 4, timeout: 3 * time.Minute}
	for _, o := range opts {
		o(i)
	}
	return i
}

// IngestPath reconciles one file. Pipeline failures are reported in the result;
// the error is only set when the file could not be read.
func (i *FSIngestor) IngestPath(ctx context.Context, userID uuid.UUID, path string) (FileResult, error) {
	out := FileResult{Path: path}

	a, err := LoadArtifact(path)
	if err != nil {
		i.logger.Warn("ingest.file.read_failed", "path", path, "error", err)
		out.Err = err.Error()
		return out, err
	}

	res, err := i.reconciler.Ingest(ctx, a, userID)
	if err != nil {
		out.Err = err.Error()
		if f, ok := common.AsIngestFailure(err); ok {
			out.Reason = f.Reason
		}
		return out, nil
	}
	out.Candidate, out.Batch = res.Candidate, res.Batch

	if out.Candidate != nil {
		if id, ok := i.persist(ctx, out.Candidate); ok {
			out.ExpenseIDs = append(out.ExpenseIDs, id)
		}
	}
	if out.Batch != nil {
		for k := range out.Batch.Accepted {
			if id, ok := i.persist(ctx, &out.Batch.Accepted[k]); ok {
				out.ExpenseIDs = append(out.ExpenseIDs, id)
			}
		}
	}
	return out, nil
}

func (i *FSIngestor) persist(ctx context.Context, c *entity.TransactionCandidate) (uuid.UUID, bool) {
	if i.sink == nil {
		return uuid.Nil, false
	}
	if i.blockDuplicates && c.DuplicateOf != nil {
		i.logger.Info("ingest.persist.duplicate_blocked", "candidate_id", c.ID, "duplicate_of", c.DuplicateOf.ExpenseID)
		return uuid.Nil, false
	}
	id, err := i.sink.Persist(ctx, c)
	if err != nil {
		i.logger.Error("ingest.persist.failed", "candidate_id", c.ID, "error", err)
		return uuid.Nil, false
	}
	return id, true
}

// IngestDirectory walks root, skips hidden entries if requested, and reconciles
// every file with an accepted extension on a bounded worker pool. Results are
// sorted by path.
func (i *FSIngestor) IngestDirectory(ctx context.Context, userID uuid.UUID, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var (
		mu      sync.Mutex
		results []FileResult
		stats   DirStats
	)
	add := func(r FileResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
		switch {
		case r.Failed():
			stats.Failed++
		default:
			stats.Succeeded++
		}
		stats.Persisted += uint32(len(r.ExpenseIDs))
	}

	q := async.NewProcessorQueue(func(ctx context.Context, j async.Job) error {
		r, err := i.IngestPath(ctx, j.UserID, j.Path)
		add(r)
		if err != nil {
			return err
		}
		if r.Failed() {
			return errors.New(r.Err)
		}
		return nil
	}, i.logger, async.WithWorkers(i.workers), async.WithProcessTimeout(i.timeout))

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		stats.Scanned++
		if err != nil {
			add(FileResult{Path: path, Err: err.Error()})
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		mu.Lock()
		stats.Matched++
		mu.Unlock()
		return q.Enqueue(ctx, async.Job{Path: path, UserID: userID})
	})
	q.Shutdown(context.Background())

	sort.Slice(results, func(a, b int) bool { return results[a].Path < results[b].Path })
	i.logger.Info("ingest.dir.done",
		"root", root,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"persisted", stats.Persisted,
	)
	if walkErr != nil {
		return results, stats, fmt.Errorf("walk: %w", walkErr)
	}
	return results, stats, nil
}
