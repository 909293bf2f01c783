package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultMinImageDimension is the shorter-side size images are upscaled to before OCR.
const DefaultMinImageDimension = 1000

// Preprocess prepares an image for OCR: grayscale, upscale when the shorter side
// is below minDim, linear contrast stretch, PNG re-encode.
func Preprocess(data []byte, minDim int) ([]byte, error) {
	if minDim <= 0 {
		minDim = DefaultMinImageDimension
	}
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img := imaging.Grayscale(src)
	img = upscale(img, minDim)
	img = stretchContrast(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func upscale(img *image.NRGBA, minDim int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	short := min(w, h)
	if short == 0 || short >= minDim {
		return img
	}
	scale := float64(minDim) / float64(short)
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

// stretchContrast maps the observed luminance range onto [0,255].
// img is grayscale, so the red channel carries the luminance.
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i]
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= lo || (lo == 0 && hi == 255) {
		return img
	}
	span := float64(hi - lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(math.Round(float64(c.R-lo) * 255 / span))
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}
