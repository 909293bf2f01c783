package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RecognizeRequest is the body posted to a remote OCR service.
type RecognizeRequest struct {
	ImageBase64 string `json:"image_base64"`
	MIMEType    string `json:"mime_type"`
	Language    string `json:"language,omitempty"`
}

// RecognizeResponse is what a remote OCR service returns.
type RecognizeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Language   string  `json:"language,omitempty"`
}

// RemoteConfig points at an external OCR service.
type RemoteConfig struct {
	URL      string
	Token    string
	Language string
	Timeout  time.Duration
}

// RemoteEngine delegates recognition to an HTTP OCR service.
type RemoteEngine struct {
	cfg    RemoteConfig
	client *http.Client
	logger *slog.Logger
}

func NewRemoteEngine(cfg RemoteConfig, client *http.Client, logger *slog.Logger) *RemoteEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RemoteEngine{cfg: cfg, client: client, logger: logger}
}

func (r *RemoteEngine) Recognize(ctx context.Context, png []byte) (string, error) {
	req := RecognizeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(png),
		MIMEType:    "image/png",
		Language:    r.cfg.Language,
	}
	headers := map[string]string{}
	if r.cfg.Token != "" {
		headers["Authorization"] = "Bearer " + r.cfg.Token
	}

	raw, status, err := sendJSON(ctx, r.client, r.cfg.URL, req, headers, r.logger)
	if err != nil {
		return "", fmt.Errorf("remote ocr (status %d): %w", status, err)
	}
	if err := validateResponse(raw); err != nil {
		r.logger.Warn("ocr.remote.invalid_response", "error", err, "bytes", len(raw))
		return "", fmt.Errorf("remote ocr: %w", err)
	}
	var resp RecognizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("remote ocr: decode response: %w", err)
	}
	return resp.Text, nil
}

// sendJSON posts body as JSON and returns the raw response body.
func sendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("ocr.remote.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("ocr.remote.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("ocr.remote.request", "req_id", reqID, "url", url, "content_length", len(bs))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("ocr.remote.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("ocr.remote.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	logger.Debug("ocr.remote.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
