// Package ocr reads fixed-font digit strings and UI icons from screen
// captures by template matching.
package ocr

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrNoFonts         = errors.New("no complete digit font")
)

// Engine turns captured regions into text and icon hits.
type Engine interface {
	// ImageToString returns the digits found left to right, "" when none.
	ImageToString(img image.Image, opts ...Option) (string, error)
	DetectTemplate(img image.Image, name string) (bool, error)
	// FindTemplate returns the top-left corner of the best match.
	FindTemplate(img image.Image, name string) (image.Point, bool, error)
	Close() error
}

type options struct {
	binarize  bool
	font      string
	threshold float64
}

type Option func(*options)

// WithFont restricts matching to one font group.
func WithFont(font string) Option {
	return func(o *options) { o.font = font }
}

// WithThreshold sets the binarization threshold; 0 selects Otsu.
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// WithoutBinarize matches on the grayscale capture.
func WithoutBinarize() Option {
	return func(o *options) { o.binarize = false }
}

func resolveOptions(opts []Option) options {
	o := options{binarize: true, threshold: 127}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Engine kinds accepted by New.
const (
	KindTemplate  = "template"
	KindContours  = "contours"
	KindTesseract = "tesseract"
)

// New builds the engine of the given kind. The engine owns set and closes
// it with itself.
func New(kind string, set *TemplateSet, matchThreshold float32, overlapRatio float64) (Engine, error) {
	base := NewTemplateEngine(set, matchThreshold, overlapRatio)
	switch kind {
	case KindTemplate, "":
		return base, nil
	case KindContours:
		return NewContoursEngine(base), nil
	case KindTesseract:
		return NewTesseractEngine(base)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", kind)
	}
}
