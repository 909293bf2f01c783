package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/reconcile"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// Pipeline is the reconciliation surface the handlers drive.
type Pipeline interface {
	Ingest(ctx context.Context, a entity.RawArtifact, userID uuid.UUID) (*reconcile.Outcome, error)
	ReconcileBatch(ctx context.Context, a entity.RawArtifact, userID uuid.UUID) (*entity.BatchReport, error)
	ReconcileQR(ctx context.Context, payload string, userID uuid.UUID) (*entity.TransactionCandidate, error)
}

// ExpenseExporter renders stored expenses as a workbook.
type ExpenseExporter interface {
	ExpensesXLSX(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]byte, error)
}

// HealthChecker is satisfied by *repository.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the collaborators behind the HTTP surface. Sink, Usage, Exporter and
// Health are optional; their routes answer 501 or skip the check when nil.
type Deps struct {
	Pipeline Pipeline
	Sink     reconcile.ExpenseSink
	Usage    reconcile.UsageStore
	Exporter ExpenseExporter
	Health   HealthChecker
}

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/uploads", h.Upload)
		r.Post("/uploads/batch", h.UploadBatch)
		r.Post("/qr", h.QR)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/usage", h.Usage)
			r.Get("/expenses/export", h.ExportExpenses)
		})
	})

	return r
}

// requestLogger stores a request-scoped logger in the context and logs one line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			ctx := common.WithRequestID(r.Context(), reqID)
			ctx = common.WithLogger(ctx, logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info("http.request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
