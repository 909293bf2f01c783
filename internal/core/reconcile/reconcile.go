// Package reconcile sequences extraction, parsing, scoring, duplicate and
// anomaly checks into a transaction candidate or a structured failure.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/anomaly"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/confidence"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/parse"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/similarity"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

const (
	DefaultDuplicateWindow    = 30 * 24 * time.Hour
	DefaultAnomalyLookback    = 90 * 24 * time.Hour
	DefaultDuplicateThreshold = 0.8
)

// Config tunes duplicate matching and anomaly detection. Zero fields take defaults.
type Config struct {
	DuplicateWindow    time.Duration // ± around the parsed date
	AnomalyLookback    time.Duration
	DuplicateThreshold float64
	Anomaly            anomaly.Config
}

// Orchestrator is safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	cfg       Config
	extractor TextExtractor
	history   HistoryProvider
	usage     UsageStore
	detector  *anomaly.Detector
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUsageStore records per-user processing counters into u.
func WithUsageStore(u UsageStore) Option { return func(o *Orchestrator) { o.usage = u } }

// WithClock overrides the time source used for windows and recorded-at hours.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New builds an Orchestrator. With a nil history, duplicate and anomaly checks
// are skipped.
func New(cfg Config, extractor TextExtractor, history HistoryProvider, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = DefaultDuplicateWindow
	}
	if cfg.AnomalyLookback <= 0 {
		cfg.AnomalyLookback = DefaultAnomalyLookback
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = DefaultDuplicateThreshold
	}
	o := &Orchestrator{
		cfg:       cfg,
		extractor: extractor,
		history:   history,
		detector:  anomaly.NewDetector(cfg.Anomaly),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Outcome is the result of Ingest: a single candidate, or a batch report for archives.
type Outcome struct {
	Candidate *entity.TransactionCandidate `json:"candidate,omitempty"`
	Batch     *entity.BatchReport          `json:"batch,omitempty"`
}

// Ingest dispatches by declared media type: archives go to ReconcileBatch,
// everything else to Reconcile.
func (o *Orchestrator) Ingest(ctx context.Context, a entity.RawArtifact, userID uuid.UUID) (*Outcome, error) {
	if mt, ok := constants.MediaTypeFromMIME(a.MIMEType); ok && mt == constants.ARCHIVE {
		rep, err := o.ReconcileBatch(ctx, a, userID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Batch: rep}, nil
	}
	c, err := o.Reconcile(ctx, a, userID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Candidate: c}, nil
}

// Reconcile runs one non-archive artifact through the pipeline. A non-nil error
// is always a *common.IngestFailure.
func (o *Orchestrator) Reconcile(ctx context.Context, a entity.RawArtifact, userID uuid.UUID) (*entity.TransactionCandidate, error) {
	c, err := o.reconcile(ctx, a, userID)
	o.recordUsage(ctx, userID, err == nil)
	return c, err
}

func (o *Orchestrator) reconcile(ctx context.Context, a entity.RawArtifact, userID uuid.UUID) (*entity.TransactionCandidate, error) {
	logger := common.LoggerFromContext(ctx, o.logger).With("origin", a.OriginName)

	mt, ok := constants.MediaTypeFromMIME(a.MIMEType)
	if !ok {
		logger.Info("reconcile.media.unsupported", "mime_type", a.MIMEType)
		return nil, common.NewIngestFailure(constants.ReasonUnsupportedMediaType, constants.StageExtraction, a.OriginName,
			fmt.Sprintf("media type %q is not accepted", a.MIMEType), nil)
	}
	if mt == constants.ARCHIVE {
		return nil, common.NewIngestFailure(constants.ReasonUnsupportedMediaType, constants.StageExtraction, a.OriginName,
			"archive requires batch reconciliation", nil)
	}

	if mt == constants.TEXT && parse.IsQRPayload(string(a.Data)) {
		return o.reconcileQR(ctx, string(a.Data), a.OriginName, userID)
	}

	res := o.extractor.Extract(ctx, a)
	if strings.TrimSpace(res.Text) == "" {
		if res.Err != nil {
			logger.Warn("reconcile.extract.failed", "strategy", res.Strategy, "error", res.Err)
			return nil, common.NewIngestFailure(constants.ReasonExtractionFailed, constants.StageExtraction, a.OriginName, "", res.Err)
		}
		logger.Info("reconcile.extract.empty", "strategy", res.Strategy)
		return nil, common.NewIngestFailure(constants.ReasonNoTextExtracted, constants.StageExtraction, a.OriginName, "", nil)
	}

	parsed, parseStrategy := parse.ParseWithFallback(res.Text)
	if !parsed.HasAmount() {
		logger.Info("reconcile.parse.no_amount", "strategy", res.Strategy, "chars", len(res.Text))
		return nil, common.NewIngestFailure(constants.ReasonNoTransactionRecognized, constants.StageParsing, a.OriginName,
			"no amount found by any parse strategy", nil)
	}

	diag := entity.Diagnostics{
		OriginName:        a.OriginName,
		Pages:             res.Pages,
		ExtractionElapsed: res.Elapsed,
		Warnings:          append([]string(nil), res.Warnings...),
	}
	return o.assemble(ctx, logger, userID, parsed, res.Strategy, parseStrategy, confidence.Score(res, parsed), diag), nil
}

// ReconcileQR reconciles a scheme://pay?... payment string.
func (o *Orchestrator) ReconcileQR(ctx context.Context, payload string, userID uuid.UUID) (*entity.TransactionCandidate, error) {
	c, err := o.reconcileQR(ctx, payload, "", userID)
	o.recordUsage(ctx, userID, err == nil)
	return c, err
}

func (o *Orchestrator) reconcileQR(ctx context.Context, payload, origin string, userID uuid.UUID) (*entity.TransactionCandidate, error) {
	logger := common.LoggerFromContext(ctx, o.logger).With("origin", origin)

	parsed, err := parse.ParseQR(payload)
	if err != nil {
		logger.Info("reconcile.qr.rejected", "error", err)
		return nil, common.NewIngestFailure(constants.ReasonNoTransactionRecognized, constants.StageParsing, origin, err.Error(), err)
	}
	score := confidence.ScoreFields(constants.StrategyQR, parsed.RawText, parsed)
	diag := entity.Diagnostics{OriginName: origin}
	return o.assemble(ctx, logger, userID, parsed, constants.StrategyQR, parse.StrategyQR, score, diag), nil
}

// assemble fetches the history window once and attaches duplicate and anomaly flags.
func (o *Orchestrator) assemble(ctx context.Context, logger *slog.Logger, userID uuid.UUID, parsed entity.ParsedFields,
	strategy constants.Strategy, parseStrategy string, score float64, diag entity.Diagnostics) *entity.TransactionCandidate {
	now := o.now()
	c := &entity.TransactionCandidate{
		ID:            uuid.New(),
		UserID:        userID,
		Parsed:        parsed,
		Confidence:    score,
		Strategy:      strategy,
		ParseStrategy: parseStrategy,
		Anomalies:     entity.AnomalySet{},
		Diagnostics:   diag,
		CreatedAt:     now.UTC(),
	}

	window, dupRange := o.windows(parsed, now)
	history, err := o.fetchHistory(ctx, userID, window)
	if err != nil {
		logger.Warn("reconcile.history.unavailable", "error", err)
		c.Diagnostics.Warnings = append(c.Diagnostics.Warnings, "history unavailable; duplicate and anomaly checks skipped")
		return c
	}
	c.Diagnostics.HistorySize = history.Len()

	c.DuplicateOf = o.bestDuplicate(parsed, history, dupRange)
	c.Anomalies = o.detector.Detect(parsed, history, now)
	if c.Anomalies.Has(constants.NovelMerchant) {
		if name, _ := anomaly.NearestMerchant(parsed.MerchantName, history); name != "" {
			c.Diagnostics.NearestMerchant = name
		}
	}

	logger.Info("reconcile.candidate.ready",
		"candidate_id", c.ID,
		"strategy", strategy,
		"parse_strategy", parseStrategy,
		"confidence", score,
		"duplicate", c.DuplicateOf != nil,
		"anomalies", len(c.Anomalies),
		"history_size", history.Len(),
	)
	return c
}

// windows returns the single history fetch range and the duplicate sub-range
// (nil when every record in the window is a duplicate candidate).
func (o *Orchestrator) windows(parsed entity.ParsedFields, now time.Time) (entity.TimeWindow, *entity.TimeWindow) {
	if parsed.Date == nil {
		now = now.UTC()
		return entity.TimeWindow{From: now.Add(-o.cfg.AnomalyLookback), To: now}, nil
	}
	anchor := entity.DateOnly(*parsed.Date)
	back := max(o.cfg.DuplicateWindow, o.cfg.AnomalyLookback)
	fetch := entity.TimeWindow{From: anchor.Add(-back), To: anchor.Add(o.cfg.DuplicateWindow)}
	dup := entity.TimeWindow{From: anchor.Add(-o.cfg.DuplicateWindow), To: anchor.Add(o.cfg.DuplicateWindow)}
	return fetch, &dup
}

func (o *Orchestrator) fetchHistory(ctx context.Context, userID uuid.UUID, w entity.TimeWindow) (entity.HistoryWindow, error) {
	if o.history == nil {
		return entity.HistoryWindow{}, errors.New("no history provider configured")
	}
	recs, err := o.history.RecentTransactions(ctx, userID, w)
	if err != nil {
		return entity.HistoryWindow{}, err
	}
	return entity.HistoryWindow{Window: w, Records: recs}, nil
}

func (o *Orchestrator) bestDuplicate(parsed entity.ParsedFields, h entity.HistoryWindow, dup *entity.TimeWindow) *entity.TransactionRef {
	var best *entity.TransactionRef
	for _, r := range h.Records {
		if dup != nil && !dup.Contains(r.OccurredAt()) {
			continue
		}
		s := similarity.Similarity(parsed, r.Fields)
		if s < o.cfg.DuplicateThreshold {
			continue
		}
		if best == nil || s > best.Score {
			best = &entity.TransactionRef{ExpenseID: r.ExpenseID, Score: s}
		}
	}
	return best
}

func (o *Orchestrator) recordUsage(ctx context.Context, userID uuid.UUID, accepted bool) {
	if o.usage == nil {
		return
	}
	if err := o.usage.Record(ctx, userID, accepted); err != nil {
		o.logger.Warn("reconcile.usage.record_failed", "user_id", userID, "error", err)
	}
}
