package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// MaxUploadBytes caps a single request body.
const MaxUploadBytes = 64 << 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	deps   Deps
	logger *slog.Logger
}

// UploadResponse is returned for a single accepted artifact.
type UploadResponse struct {
	Candidate *entity.TransactionCandidate `json:"candidate,omitempty"`
	Batch     *entity.BatchReport          `json:"batch,omitempty"`
	// ExpenseIDs lists what was persisted, in candidate order.
	ExpenseIDs []uuid.UUID `json:"expense_ids"`
	// Skipped counts duplicates left unpersisted because block_duplicates was set.
	Skipped int `json:"skipped,omitempty"`
	// PersistErrors lists candidates the sink refused; the rest are still stored.
	PersistErrors []PersistError `json:"persist_errors,omitempty"`
}

// PersistError reports one candidate that could not be stored.
type PersistError struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Origin      string    `json:"origin,omitempty"`
	Error       string    `json:"error"`
}

type errorBody struct {
	Error   string                `json:"error"`
	Failure *common.IngestFailure `json:"failure,omitempty"`
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("http.encode_failed", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps pipeline errors: unsupported media is 415, every other
// ingest failure is 422, anything else is 500.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	f, ok := common.AsIngestFailure(err)
	if !ok {
		h.logger.Error("http.pipeline_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := http.StatusUnprocessableEntity
	if f.Reason == constants.ReasonUnsupportedMediaType {
		status = http.StatusUnsupportedMediaType
	}
	h.writeJSON(w, status, errorBody{Error: f.Error(), Failure: f})
}

func parseUserID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, errors.New("user_id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("user_id must be a UUID")
	}
	return id, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	return &t, nil
}

// readUpload parses the multipart form and returns the artifact in field "file".
// The declared MIME type is the media_type form value, else the part's
// Content-Type, else the extension's.
func readUpload(w http.ResponseWriter, r *http.Request) (entity.RawArtifact, uuid.UUID, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return entity.RawArtifact{}, uuid.Nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	userID, err := parseUserID(r.FormValue("user_id"))
	if err != nil {
		return entity.RawArtifact{}, uuid.Nil, err
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return entity.RawArtifact{}, uuid.Nil, fmt.Errorf("file field is required: %w", err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(file)
	if err != nil {
		return entity.RawArtifact{}, uuid.Nil, fmt.Errorf("read file: %w", err)
	}
	return entity.RawArtifact{
		Data:       data,
		MIMEType:   declaredMIME(r.FormValue("media_type"), hdr),
		OriginName: filepath.Base(hdr.Filename),
	}, userID, nil
}

func declaredMIME(explicit string, hdr *multipart.FileHeader) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if ct := hdr.Header.Get("Content-Type"); ct != "" && constants.NormalizeMIME(ct) != "application/octet-stream" {
		return ct
	}
	return constants.MIMEFromExt(filepath.Ext(hdr.Filename))
}

// persist stores accepted candidates through the sink, skipping duplicates when
// blocked. A failed candidate does not stop the rest from being stored.
func (h *Handlers) persist(r *http.Request, cands []*entity.TransactionCandidate, blockDuplicates bool) persistResult {
	res := persistResult{ids: []uuid.UUID{}}
	if h.deps.Sink == nil {
		return res
	}
	logger := common.LoggerFromContext(r.Context(), h.logger)
	for _, c := range cands {
		if blockDuplicates && c.DuplicateOf != nil {
			logger.Info("http.upload.duplicate_blocked", "candidate_id", c.ID, "duplicate_of", c.DuplicateOf.ExpenseID)
			res.skipped++
			continue
		}
		id, err := h.deps.Sink.Persist(r.Context(), c)
		if err != nil {
			logger.Error("http.persist_failed", "candidate_id", c.ID, "origin", c.Diagnostics.OriginName, "error", err)
			res.errs = append(res.errs, PersistError{CandidateID: c.ID, Origin: c.Diagnostics.OriginName, Error: err.Error()})
			continue
		}
		res.ids = append(res.ids, id)
	}
	return res
}

type persistResult struct {
	ids     []uuid.UUID
	skipped int
	errs    []PersistError
}

// respond writes resp with the persist outcome. Only when every attempted
// candidate failed is the request answered with 500.
func (h *Handlers) respond(w http.ResponseWriter, resp UploadResponse, res persistResult) {
	if len(res.errs) > 0 && len(res.ids) == 0 {
		h.writeError(w, http.StatusInternalServerError, "persist failed")
		return
	}
	resp.ExpenseIDs = res.ids
	resp.Skipped = res.skipped
	resp.PersistErrors = res.errs
	h.writeJSON(w, http.StatusOK, resp)
}

func blockDuplicates(r *http.Request) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get("block_duplicates"))
	return b
}

// --- Upload ---

func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	a, userID, err := readUpload(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := common.WithUserID(r.Context(), userID.String())

	out, err := h.deps.Pipeline.Ingest(ctx, a, userID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var cands []*entity.TransactionCandidate
	if out.Candidate != nil {
		cands = append(cands, out.Candidate)
	}
	if out.Batch != nil {
		for i := range out.Batch.Accepted {
			cands = append(cands, &out.Batch.Accepted[i])
		}
	}
	res := h.persist(r.WithContext(ctx), cands, blockDuplicates(r))
	h.respond(w, UploadResponse{Candidate: out.Candidate, Batch: out.Batch}, res)
}

// --- UploadBatch ---

func (h *Handlers) UploadBatch(w http.ResponseWriter, r *http.Request) {
	a, userID, err := readUpload(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := common.WithUserID(r.Context(), userID.String())

	rep, err := h.deps.Pipeline.ReconcileBatch(ctx, a, userID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	cands := make([]*entity.TransactionCandidate, len(rep.Accepted))
	for i := range rep.Accepted {
		cands[i] = &rep.Accepted[i]
	}
	res := h.persist(r.WithContext(ctx), cands, blockDuplicates(r))
	h.respond(w, UploadResponse{Batch: rep}, res)
}

// --- QR ---

type qrRequest struct {
	UserID  string `json:"user_id"`
	Payload string `json:"payload"`
}

func (h *Handlers) QR(w http.ResponseWriter, r *http.Request) {
	var req qrRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userID, err := parseUserID(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Payload) == "" {
		h.writeError(w, http.StatusBadRequest, "payload is required")
		return
	}
	ctx := common.WithUserID(r.Context(), userID.String())

	c, err := h.deps.Pipeline.ReconcileQR(ctx, req.Payload, userID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	res := h.persist(r.WithContext(ctx), []*entity.TransactionCandidate{c}, blockDuplicates(r))
	h.respond(w, UploadResponse{Candidate: c}, res)
}

// --- Usage ---

func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) {
	if h.deps.Usage == nil {
		h.writeError(w, http.StatusNotImplemented, "usage tracking is disabled")
		return
	}
	userID, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.deps.Usage.Usage(r.Context(), userID)
	if err != nil {
		h.logger.Error("http.usage.failed", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "usage lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// --- ExportExpenses ---

func (h *Handlers) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	if h.deps.Exporter == nil {
		h.writeError(w, http.StatusNotImplemented, "export is disabled")
		return
	}
	userID, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.deps.Exporter.ExpensesXLSX(r.Context(), userID, from, to)
	if err != nil {
		h.logger.Error("http.export.failed", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health.HealthCheck(r.Context(), 3*time.Second); err != nil {
			h.logger.Warn("http.health.db_failed", "error", err)
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
