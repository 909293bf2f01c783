package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

func makePNG(t *testing.T, w, h int, lo, hi uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		v := lo
		if w > 1 {
			v = lo + uint8(int(hi-lo)*x/(w-1))
		}
		for y := 0; y < h; y++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeEngine struct {
	mu    sync.Mutex
	texts []string
	err   error
	calls int
}

func (f *fakeEngine) Recognize(_ context.Context, img []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := png.Decode(bytes.NewReader(img)); err != nil {
		return "", err
	}
	i := f.calls
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.texts) == 0 {
		return "", nil
	}
	return f.texts[i%len(f.texts)], nil
}

type fakeTextLayer struct {
	text  string
	pages int
	err   error
}

func (f fakeTextLayer) Text([]byte) (string, int, error) { return f.text, f.pages, f.err }

type fakeRenderer struct {
	pages   [][]byte
	err     error
	gotDPI  int
	gotMaxP int
}

func (f *fakeRenderer) Render(_ context.Context, _ []byte, dpi, maxPages int) ([][]byte, error) {
	f.gotDPI, f.gotMaxP = dpi, maxPages
	return f.pages, f.err
}

type panicEngine struct{}

func (panicEngine) Recognize(context.Context, []byte) (string, error) { panic("boom") }

func TestExtract_ScannedPDFFallsBackToOCR(t *testing.T) {
	page := makePNG(t, 40, 20, 30, 220)
	eng := &fakeEngine{texts: []string{"₹500"}}
	rend := &fakeRenderer{pages: [][]byte{page}}
	ex := NewExtractor(Config{DPI: 150, MaxPages: 3}, eng, slog.Default(),
		WithTextLayer(fakeTextLayer{text: "  \n ", pages: 1}),
		WithPageRenderer(rend),
	)

	res := ex.Extract(context.Background(), entity.RawArtifact{Data: []byte("%PDF-1.4"), MIMEType: "application/pdf", OriginName: "scan.pdf"})

	require.NoError(t, res.Err)
	assert.Equal(t, constants.StrategyOCRFallback, res.Strategy)
	assert.Contains(t, res.Text, "₹500")
	assert.Equal(t, float64(OCRConfidence), res.Confidence)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, MinDPI, rend.gotDPI, "dpi is raised to the floor")
	assert.Equal(t, 3, rend.gotMaxP)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtract_PDFEmbeddedText(t *testing.T) {
	eng := &fakeEngine{}
	ex := NewExtractor(Config{}, eng, nil,
		WithTextLayer(fakeTextLayer{text: "Paid Rs. 250 to shop@upi", pages: 2}),
		WithPageRenderer(&fakeRenderer{}),
	)
	res := ex.Extract(context.Background(), entity.RawArtifact{Data: []byte("x"), MIMEType: "application/pdf"})

	assert.Equal(t, constants.StrategyEmbeddedText, res.Strategy)
	assert.Equal(t, "Paid Rs. 250 to shop@upi", res.Text)
	assert.Equal(t, float64(DocumentConfidence), res.Confidence)
	assert.Equal(t, 2, res.Pages)
	assert.Zero(t, eng.calls)
}

func TestExtract_PDFRenderFailure(t *testing.T) {
	ex := NewExtractor(Config{}, &fakeEngine{}, nil,
		WithTextLayer(fakeTextLayer{err: errors.New("bad xref")}),
		WithPageRenderer(&fakeRenderer{err: errors.New("pdftoppm missing")}),
	)
	res := ex.Extract(context.Background(), entity.RawArtifact{Data: []byte("x"), MIMEType: "application/pdf"})

	assert.Error(t, res.Err)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, constants.StrategyOCRFallback, res.Strategy)
}

func TestExtract_Image(t *testing.T) {
	eng := &fakeEngine{texts: []string{"Paid Rs 120\n.\nto kiosk@upi\x07"}}
	ex := NewExtractor(Config{MinImageDimension: 50}, eng, nil)
	res := ex.Extract(context.Background(), entity.RawArtifact{Data: makePNG(t, 30, 30, 0, 255), MIMEType: "image/png"})

	require.NoError(t, res.Err)
	assert.Equal(t, constants.StrategyOCR, res.Strategy)
	assert.Equal(t, "Paid Rs 120\nto kiosk@upi", res.Text)
	assert.Equal(t, float64(OCRConfidence), res.Confidence)
}

func TestExtract_ImageEmptyOCR(t *testing.T) {
	ex := NewExtractor(Config{MinImageDimension: 10}, &fakeEngine{texts: []string{" \n"}}, nil)
	res := ex.Extract(context.Background(), entity.RawArtifact{Data: makePNG(t, 10, 10, 0, 255), MIMEType: "image/png"})

	assert.NoError(t, res.Err)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)
}

func TestExtract_UndecodableImage(t *testing.T) {
	ex := NewExtractor(Config{}, &fakeEngine{}, nil)
	res := ex.Extract(context.Background(), entity.RawArtifact{Data: []byte("not an image"), MIMEType: "image/jpeg"})

	assert.Error(t, res.Err)
	assert.Equal(t, constants.StrategyOCR, res.Strategy)
	assert.Zero(t, res.Confidence)
}

func TestExtract_PanicIsRecovered(t *testing.T) {
	ex := NewExtractor(Config{MinImageDimension: 10}, panicEngine{}, nil)
	var res ExtractionResult
	require.NotPanics(t, func() {
		res = ex.Extract(context.Background(), entity.RawArtifact{Data: makePNG(t, 10, 10, 0, 255), MIMEType: "image/png"})
	})
	assert.ErrorContains(t, res.Err, "panic")
	assert.Empty(t, res.Text)
}

func TestExtract_Passthrough(t *testing.T) {
	ex := NewExtractor(Config{}, nil, nil)
	data := []byte("\uFEFFDebited by Rs 99.00\r\nRef no 12345678\xff")
	res := ex.Extract(context.Background(), entity.RawArtifact{Data: data, MIMEType: "text/plain; charset=utf-8"})

	require.NoError(t, res.Err)
	assert.Equal(t, constants.StrategyPassthrough, res.Strategy)
	assert.Equal(t, "Debited by Rs 99.00\nRef no 12345678\uFFFD", res.Text)
	assert.Equal(t, float64(DocumentConfidence), res.Confidence)
}

func TestExtract_UnsupportedAndArchive(t *testing.T) {
	ex := NewExtractor(Config{}, nil, nil)

	res := ex.Extract(context.Background(), entity.RawArtifact{Data: []byte("x"), MIMEType: "video/mp4"})
	assert.ErrorIs(t, res.Err, ErrUnsupportedMedia)

	res = ex.Extract(context.Background(), entity.RawArtifact{Data: []byte("PK"), MIMEType: "application/zip"})
	assert.ErrorIs(t, res.Err, ErrArchive)
}

func TestPreprocess_UpscalesShortSide(t *testing.T) {
	out, err := Preprocess(makePNG(t, 200, 100, 0, 255), 1000)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.Width)
	assert.Equal(t, 1000, cfg.Height)
}

func TestPreprocess_StretchesContrast(t *testing.T) {
	out, err := Preprocess(makePNG(t, 20, 20, 100, 150), 10)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	lo, hi := uint32(0xffff), uint32(0)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			lo, hi = min(lo, r), max(hi, r)
		}
	}
	assert.Equal(t, 20, b.Dx(), "no upscale above the minimum")
	assert.Equal(t, uint32(0), lo)
	assert.Equal(t, uint32(0xffff), hi)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses blanks", "Paid   Rs\t\t500", "Paid Rs 500"},
		{"drops short lines", "a\nTotal 500\n|\n\nok", "Total 500\nok"},
		{"strips control chars", "Amt\x00 12\x1b0", "Amt 120"},
		{"drops box rules", "Header\n------\nBody", "Header\nBody"},
		{"crlf", "one line\r\ntwo line\r", "one line\ntwo line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

type recordingRunner struct {
	name   string
	args   []string
	stdout []byte
	err    error
	sawPNG bool
}

func (r *recordingRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	r.name, r.args = name, args
	if len(args) > 0 {
		if b, err := os.ReadFile(args[0]); err == nil {
			_, decErr := png.Decode(bytes.NewReader(b))
			r.sawPNG = decErr == nil
		}
	}
	return r.stdout, []byte("warn"), r.err
}

func TestTesseractEngine_Args(t *testing.T) {
	run := &recordingRunner{stdout: []byte("TOTAL 500")}
	eng := NewTesseractEngine(TesseractConfig{Lang: "eng+hin", PSM: 6, TessdataDir: "/td"}, run, nil)

	txt, err := eng.Recognize(context.Background(), makePNG(t, 4, 4, 0, 255))
	require.NoError(t, err)
	assert.Equal(t, "TOTAL 500", txt)
	assert.Equal(t, "tesseract", run.name)
	assert.True(t, run.sawPNG)
	assert.Equal(t, []string{"stdout", "-l", "eng+hin", "--psm", "6", "--tessdata-dir", "/td"}, run.args[1:])

	_, statErr := os.Stat(run.args[0])
	assert.True(t, os.IsNotExist(statErr), "temp image is removed")
}

func TestTesseractEngine_Error(t *testing.T) {
	run := &recordingRunner{err: errors.New("exit status 1")}
	eng := NewTesseractEngine(TesseractConfig{}, run, nil)
	_, err := eng.Recognize(context.Background(), makePNG(t, 4, 4, 0, 255))
	assert.ErrorContains(t, err, "tesseract")
}
