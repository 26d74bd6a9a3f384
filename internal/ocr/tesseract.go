package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// TesseractEngine reads digits with Tesseract in single-line mode. Icon
// lookups stay on template matching.
type TesseractEngine struct {
	*TemplateEngine

	mu     sync.Mutex
	client *gosseract.Client
}

func NewTesseractEngine(base *TemplateEngine) (*TesseractEngine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	if err := client.SetVariable("tessedit_char_whitelist", "0123456789/"); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	return &TesseractEngine{TemplateEngine: base, client: client}, nil
}

func (e *TesseractEngine) ImageToString(img image.Image, opts ...Option) (string, error) {
	o := resolveOptions(opts)
	src, err := e.prepare(img, o)
	if err != nil {
		return "", err
	}
	defer src.Close()

	// small HUD digits read far better upscaled
	big := gocv.NewMat()
	defer big.Close()
	gocv.Resize(src, &big, image.Point{}, 3, 3, gocv.InterpolationCubic)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, big)
	if err != nil {
		return "", fmt.Errorf("tesseract: encode: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return keepDigits(text), nil
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '/' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	err := e.client.Close()
	e.mu.Unlock()
	e.TemplateEngine.Close()
	return err
}
