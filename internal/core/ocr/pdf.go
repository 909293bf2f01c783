package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// MinDPI is the lowest rasterization resolution used for scanned PDFs.
const MinDPI = 300

// TextLayer reads the embedded text of a PDF.
type TextLayer interface {
	Text(data []byte) (text string, pages int, err error)
}

// PageRenderer rasterizes PDF pages to PNG, in page order.
type PageRenderer interface {
	Render(ctx context.Context, data []byte, dpi, maxPages int) ([][]byte, error)
}

// PDFTextLayer reads embedded text with ledongthuc/pdf.
type PDFTextLayer struct{}

func (PDFTextLayer) Text(data []byte) (text string, pages int, err error) {
	// the reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text layer: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = r.NumPage()
	rd, err := r.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("read text layer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return "", pages, fmt.Errorf("read text layer: %w", err)
	}
	return buf.String(), pages, nil
}

// PPMRenderer rasterizes pages with poppler's pdftoppm.
type PPMRenderer struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPPMRenderer(bin string, runner Runner, logger *slog.Logger) *PPMRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if bin == "" {
		bin = "pdftoppm"
	}
	return &PPMRenderer{bin: bin, runner: runner, logger: logger}
}

func (p *PPMRenderer) Render(ctx context.Context, data []byte, dpi, maxPages int) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "recon-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("ocr.pdf.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(max(dpi, MinDPI)), "-png"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, in, prefix)
	if _, errb, err := p.runner.Run(ctx, p.bin, p.logger, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if maxPages > 0 && len(matches) > maxPages {
		matches = matches[:maxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}
