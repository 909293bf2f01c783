package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/ocr"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/reconcile"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
	"github.com/joseph-ayodele/expense-reconciler/internal/export"
	"github.com/joseph-ayodele/expense-reconciler/internal/repository"
)

const sms = "Received from Cafe Coffee Day via UPI Rs 250"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithSink(t, nil)
}

// newTestServerWithSink lets wrap replace the repository sink.
func newTestServerWithSink(t *testing.T, wrap func(reconcile.ExpenseSink) reconcile.ExpenseSink) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "file::memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(ctx))

	expenses := repository.NewExpenseRepository(db, nil)
	usage := repository.NewSQLUsageStore(db, nil)
	pipeline := reconcile.New(reconcile.Config{}, ocr.NewExtractor(ocr.Config{}, nil, nil), expenses, nil,
		reconcile.WithUsageStore(usage))

	var sink reconcile.ExpenseSink = expenses
	if wrap != nil {
		sink = wrap(sink)
	}

	srv := httptest.NewServer(NewRouter(Deps{
		Pipeline: pipeline,
		Sink:     sink,
		Usage:    usage,
		Exporter: export.NewService(expenses, nil),
		Health:   db,
	}, nil))
	t.Cleanup(srv.Close)
	return srv
}

type part struct {
	name, filename, contentType string
	data                        []byte
}

func postMultipart(t *testing.T, url string, fields map[string]string, parts ...part) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+p.name+`"; filename="`+p.filename+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUpload_PersistsAndFlagsDuplicates(t *testing.T) {
	srv := newTestServer(t)
	user := uuid.New().String()
	file := part{name: "file", filename: "sms.txt", contentType: "text/plain", data: []byte(sms)}

	resp := postMultipart(t, srv.URL+"/api/v1/uploads", map[string]string{"user_id": user}, file)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[UploadResponse](t, resp)
	require.NotNil(t, first.Candidate)
	assert.Equal(t, "250", first.Candidate.Parsed.Amount.String())
	assert.Equal(t, "Cafe Coffee Day", first.Candidate.Parsed.MerchantName)
	assert.Equal(t, constants.StrategyPassthrough, first.Candidate.Strategy)
	require.Len(t, first.ExpenseIDs, 1)
	assert.Nil(t, first.Candidate.DuplicateOf)

	resp = postMultipart(t, srv.URL+"/api/v1/uploads?block_duplicates=true", map[string]string{"user_id": user}, file)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[UploadResponse](t, resp)
	require.NotNil(t, second.Candidate.DuplicateOf)
	assert.Equal(t, first.ExpenseIDs[0], second.Candidate.DuplicateOf.ExpenseID)
	assert.Empty(t, second.ExpenseIDs)
	assert.Equal(t, 1, second.Skipped)

	usage, err := http.Get(srv.URL + "/api/v1/users/" + user + "/usage")
	require.NoError(t, err)
	defer usage.Body.Close()
	require.Equal(t, http.StatusOK, usage.StatusCode)
	st := decode[entity.UsageStats](t, usage)
	assert.Equal(t, int64(2), st.Processed)
	assert.Equal(t, int64(2), st.Accepted)
}

func TestUpload_MediaTypeFromExtension(t *testing.T) {
	srv := newTestServer(t)
	file := part{name: "file", filename: "note.sms", contentType: "application/octet-stream", data: []byte(sms)}
	resp := postMultipart(t, srv.URL+"/api/v1/uploads", map[string]string{"user_id": uuid.New().String()}, file)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpload_Failures(t *testing.T) {
	srv := newTestServer(t)
	user := uuid.New().String()

	tests := []struct {
		name   string
		fields map[string]string
		file   part
		status int
		reason constants.FailureReason
	}{
		{"unsupported media", map[string]string{"user_id": user, "media_type": "application/x-foo"},
			part{name: "file", filename: "a.bin", data: []byte("x")}, http.StatusUnsupportedMediaType, constants.ReasonUnsupportedMediaType},
		{"no transaction", map[string]string{"user_id": user},
			part{name: "file", filename: "a.txt", contentType: "text/plain", data: []byte("hello there, how are you")},
			http.StatusUnprocessableEntity, constants.ReasonNoTransactionRecognized},
		{"missing user", map[string]string{},
			part{name: "file", filename: "a.txt", contentType: "text/plain", data: []byte(sms)}, http.StatusBadRequest, ""},
		{"bad user", map[string]string{"user_id": "nope"},
			part{name: "file", filename: "a.txt", contentType: "text/plain", data: []byte(sms)}, http.StatusBadRequest, ""},
		{"missing file", map[string]string{"user_id": user},
			part{name: "other", filename: "a.txt", data: []byte(sms)}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postMultipart(t, srv.URL+"/api/v1/uploads", tt.fields, tt.file)
			require.Equal(t, tt.status, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.NotEmpty(t, body.Error)
			if tt.reason != "" {
				require.NotNil(t, body.Failure)
				assert.Equal(t, tt.reason, body.Failure.Reason)
			}
		})
	}
}

func TestUploadBatch(t *testing.T) {
	srv := newTestServer(t)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{"a.txt": sms, "b.docx": "Rs 10"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	file := part{name: "file", filename: "bundle.zip", contentType: "application/zip", data: buf.Bytes()}
	resp := postMultipart(t, srv.URL+"/api/v1/uploads/batch", map[string]string{"user_id": uuid.New().String()}, file)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[UploadResponse](t, resp)
	require.NotNil(t, out.Batch)
	assert.Equal(t, 2, out.Batch.TotalEntries)
	assert.Len(t, out.Batch.Accepted, 1)
	require.Len(t, out.Batch.Rejected, 1)
	assert.Equal(t, "b.docx", out.Batch.Rejected[0].EntryName)
	assert.Len(t, out.ExpenseIDs, 1)

	resp = postMultipart(t, srv.URL+"/api/v1/uploads/batch", map[string]string{"user_id": uuid.New().String()},
		part{name: "file", filename: "broken.zip", contentType: "application/zip", data: []byte("not a zip")})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// failingSink refuses candidates whose origin is listed in fail.
type failingSink struct {
	next reconcile.ExpenseSink
	fail map[string]bool
}

func (s failingSink) Persist(ctx context.Context, c *entity.TransactionCandidate) (uuid.UUID, error) {
	if s.fail[c.Diagnostics.OriginName] {
		return uuid.Nil, errors.New("disk full")
	}
	return s.next.Persist(ctx, c)
}

func TestUploadBatch_PartialPersistFailure(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(sms))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	bundle := part{name: "file", filename: "bundle.zip", contentType: "application/zip", data: buf.Bytes()}

	t.Run("remaining entries are stored", func(t *testing.T) {
		srv := newTestServerWithSink(t, func(next reconcile.ExpenseSink) reconcile.ExpenseSink {
			return failingSink{next: next, fail: map[string]bool{"b.txt": true}}
		})
		resp := postMultipart(t, srv.URL+"/api/v1/uploads/batch", map[string]string{"user_id": uuid.New().String()}, bundle)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[UploadResponse](t, resp)
		assert.Len(t, out.ExpenseIDs, 2)
		require.Len(t, out.PersistErrors, 1)
		assert.Equal(t, "b.txt", out.PersistErrors[0].Origin)
		assert.Equal(t, "disk full", out.PersistErrors[0].Error)
	})

	t.Run("nothing stored is a server error", func(t *testing.T) {
		srv := newTestServerWithSink(t, func(next reconcile.ExpenseSink) reconcile.ExpenseSink {
			return failingSink{next: next, fail: map[string]bool{"a.txt": true, "b.txt": true, "c.txt": true}}
		})
		resp := postMultipart(t, srv.URL+"/api/v1/uploads/batch", map[string]string{"user_id": uuid.New().String()}, bundle)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decode[errorBody](t, resp)
		assert.Equal(t, "persist failed", body.Error)
	})
}

func TestQR(t *testing.T) {
	srv := newTestServer(t)
	post := func(body string) *http.Response {
		resp, err := http.Post(srv.URL+"/api/v1/qr", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}
	user := uuid.New().String()

	resp := post(`{"user_id":"` + user + `","payload":"upi://pay?pa=shop@upi&pn=Corner%20Shop&am=99.50"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[UploadResponse](t, resp)
	require.NotNil(t, out.Candidate)
	assert.Equal(t, constants.StrategyQR, out.Candidate.Strategy)
	assert.Equal(t, "shop@upi", out.Candidate.Parsed.CounterpartyHandle)
	assert.Len(t, out.ExpenseIDs, 1)

	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"user_id":"`+user+`","payload":"upi://pay?pa=shop@upi"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{"user_id":"`+user+`"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{`).StatusCode)
}

func TestExportAndHealth(t *testing.T) {
	srv := newTestServer(t)
	user := uuid.New().String()
	file := part{name: "file", filename: "sms.txt", contentType: "text/plain", data: []byte(sms)}
	require.Equal(t, http.StatusOK, postMultipart(t, srv.URL+"/api/v1/uploads", map[string]string{"user_id": user}, file).StatusCode)

	resp, err := http.Get(srv.URL + "/api/v1/users/" + user + "/expenses/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	rows, err := f.GetRows(export.SheetExpenses)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	bad, err := http.Get(srv.URL + "/api/v1/users/" + user + "/expenses/export?from=03-2024")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestOptionalDepsAnswerNotImplemented(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Deps{}, nil))
	defer srv.Close()
	for _, p := range []string{"/usage", "/expenses/export"} {
		resp, err := http.Get(srv.URL + "/api/v1/users/" + uuid.New().String() + p)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode, p)
	}
}
