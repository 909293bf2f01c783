package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// Preliminary confidence reported with extracted text.
const (
	DocumentConfidence = 95
	OCRConfidence      = 50
)

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrArchive          = errors.New("archives are not extracted directly")
)

type Config struct {
	DPI               int // rasterization DPI for scanned PDFs, never below 300
	MaxPages          int // 0 = no limit
	MinImageDimension int
	PageTimeout       time.Duration // 0 = no per-page timeout
}

// ExtractionResult is the outcome of one extraction. Text is empty when nothing
// was extracted, and then Confidence is 0.
type ExtractionResult struct {
	Text       string
	Confidence float64
	Strategy   constants.Strategy
	Pages      int
	Elapsed    time.Duration
	Warnings   []string
	Err        error // internal cause, diagnostic only
}

// Failed reports whether extraction hit an error rather than simply finding no text.
func (r ExtractionResult) Failed() bool { return r.Err != nil }

type Extractor struct {
	cfg       Config
	engine    Engine
	textLayer TextLayer
	renderer  PageRenderer
	logger    *slog.Logger
}

type Option func(*Extractor)

func WithTextLayer(t TextLayer) Option { return func(e *Extractor) { e.textLayer = t } }

func WithPageRenderer(r PageRenderer) Option { return func(e *Extractor) { e.renderer = r } }

func NewExtractor(cfg Config, engine Engine, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DPI < MinDPI {
		cfg.DPI = MinDPI
	}
	if cfg.MinImageDimension <= 0 {
		cfg.MinImageDimension = DefaultMinImageDimension
	}
	e := &Extractor{cfg: cfg, engine: engine, logger: logger}
	for _, o := range opts {
		o(e)
	}
	if e.textLayer == nil {
		e.textLayer = PDFTextLayer{}
	}
	if e.renderer == nil {
		e.renderer = NewPPMRenderer("", nil, logger)
	}
	return e
}

// Extract picks a strategy from the declared MIME type. It never returns an
// error: failures come back as an empty result with Err set.
func (e *Extractor) Extract(ctx context.Context, a entity.RawArtifact) (res ExtractionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("ocr.extract.panic", "origin", a.OriginName, "panic", r)
			res = ExtractionResult{Strategy: res.Strategy, Warnings: res.Warnings, Err: fmt.Errorf("extraction panic: %v", r)}
		}
		if res.Text == "" {
			res.Confidence = 0
		}
		res.Elapsed = time.Since(start)
	}()

	mt, ok := constants.MediaTypeFromMIME(a.MIMEType)
	if !ok {
		return ExtractionResult{Err: fmt.Errorf("%w: %q", ErrUnsupportedMedia, a.MIMEType)}
	}

	e.logger.Debug("ocr.extract.start", "origin", a.OriginName, "media_type", mt, "bytes", len(a.Data))
	switch mt {
	case constants.IMAGE:
		res = e.extractImage(ctx, a.Data)
	case constants.PDF:
		res = e.extractPDF(ctx, a.Data)
	case constants.TEXT:
		res = passthrough(a.Data)
	default:
		return ExtractionResult{Err: ErrArchive}
	}

	if res.Err != nil {
		e.logger.Warn("ocr.extract.failed", "origin", a.OriginName, "strategy", res.Strategy, "error", res.Err)
	} else {
		e.logger.Debug("ocr.extract.done", "origin", a.OriginName, "strategy", res.Strategy, "chars", len(res.Text), "pages", res.Pages)
	}
	return res
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) ExtractionResult {
	res := ExtractionResult{Strategy: constants.StrategyOCR, Pages: 1}
	txt, err := e.recognizePage(ctx, data)
	if err != nil {
		res.Err = err
		return res
	}
	return withText(res, txt, OCRConfidence)
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) ExtractionResult {
	text, pages, err := e.textLayer.Text(data)
	if err == nil && strings.TrimSpace(text) != "" {
		res := ExtractionResult{Strategy: constants.StrategyEmbeddedText, Pages: pages}
		return withText(res, text, DocumentConfidence)
	}

	res := ExtractionResult{Strategy: constants.StrategyOCRFallback}
	if err != nil {
		res.Warnings = append(res.Warnings, "text layer unreadable: "+err.Error())
	} else {
		res.Warnings = append(res.Warnings, "text layer empty")
	}

	imgs, err := e.renderer.Render(ctx, data, e.cfg.DPI, e.cfg.MaxPages)
	if err != nil {
		res.Err = fmt.Errorf("render pdf: %w", err)
		return res
	}
	res.Pages = len(imgs)

	var b strings.Builder
	var lastErr error
	for i, img := range imgs {
		txt, err := e.recognizePage(ctx, img)
		if err != nil {
			lastErr = err
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}
	if b.Len() == 0 && lastErr != nil {
		res.Err = lastErr
		return res
	}
	return withText(res, b.String(), OCRConfidence)
}

func (e *Extractor) recognizePage(ctx context.Context, img []byte) (string, error) {
	if e.engine == nil {
		return "", errors.New("no ocr engine configured")
	}
	png, err := Preprocess(img, e.cfg.MinImageDimension)
	if err != nil {
		return "", err
	}
	if e.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.PageTimeout)
		defer cancel()
	}
	txt, err := e.engine.Recognize(ctx, png)
	if err != nil {
		return "", err
	}
	return Clean(txt), nil
}

func passthrough(data []byte) ExtractionResult {
	res := ExtractionResult{Strategy: constants.StrategyPassthrough, Pages: 1}
	return withText(res, string(data), DocumentConfidence)
}

func withText(res ExtractionResult, text string, conf float64) ExtractionResult {
	res.Text = Clean(text)
	if res.Text != "" {
		res.Confidence = conf
	}
	return res
}
