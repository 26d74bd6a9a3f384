package ocr

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// TemplateEngine slides every glyph of the candidate fonts over the capture
// and keeps the best non-overlapping hits.
type TemplateEngine struct {
	set       *TemplateSet
	threshold float32
	overlap   float64
	log       zerolog.Logger
}

func NewTemplateEngine(set *TemplateSet, matchThreshold float32, overlapRatio float64) *TemplateEngine {
	if matchThreshold <= 0 {
		matchThreshold = 0.7
	}
	if overlapRatio <= 0 {
		overlapRatio = 0.6
	}
	return &TemplateEngine{
		set:       set,
		threshold: matchThreshold,
		overlap:   overlapRatio,
		log:       log.With().Str("component", "ocr").Logger(),
	}
}

// fontsFor returns the requested font, or every font when it is unknown.
func (e *TemplateEngine) fontsFor(name string) []*Font {
	if name != "" {
		if f, ok := e.set.Font(name); ok {
			return []*Font{f}
		}
		e.log.Debug().Str("font", name).Msg("font not loaded, matching all fonts")
	}
	return e.set.Fonts()
}

func (e *TemplateEngine) prepare(img image.Image, o options) (gocv.Mat, error) {
	gray, err := toGray(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("ocr: %w", err)
	}
	if !o.binarize {
		return gray, nil
	}
	defer gray.Close()
	return binarize(gray, o.threshold), nil
}

func (e *TemplateEngine) ImageToString(img image.Image, opts ...Option) (string, error) {
	o := resolveOptions(opts)
	src, err := e.prepare(img, o)
	if err != nil {
		return "", err
	}
	defer src.Close()

	var matches []Match
	for _, f := range e.fontsFor(o.font) {
		for _, ch := range f.Chars() {
			glyph, _ := f.Glyph(ch)
			hits, err := matchAll(src, glyph, e.threshold)
			if err != nil {
				return "", fmt.Errorf("ocr: match %s/%c: %w", f.Name, ch, err)
			}
			for _, h := range hits {
				matches = append(matches, Match{Char: ch, X: h.X, Score: h.score, Width: glyph.Cols(), Font: f.Name})
			}
		}
	}
	return Assemble(SuppressOverlaps(matches, e.overlap)), nil
}

func (e *TemplateEngine) DetectTemplate(img image.Image, name string) (bool, error) {
	_, ok, err := e.FindTemplate(img, name)
	return ok, err
}

func (e *TemplateEngine) FindTemplate(img image.Image, name string) (image.Point, bool, error) {
	tmpl, ok := e.set.Icon(name)
	if !ok {
		return image.Point{}, false, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	src, err := toGray(img)
	if err != nil {
		return image.Point{}, false, fmt.Errorf("ocr: %w", err)
	}
	defer src.Close()
	if tmpl.Cols() > src.Cols() || tmpl.Rows() > src.Rows() {
		return image.Point{}, false, nil
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(src, tmpl, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	if maxVal < e.threshold {
		return image.Point{}, false, nil
	}
	return maxLoc, true, nil
}

func (e *TemplateEngine) Close() error {
	if e.set != nil {
		e.set.Close()
	}
	return nil
}

type hit struct {
	image.Point
	score float32
}

// matchAll returns every location scoring at least threshold.
func matchAll(src, tmpl gocv.Mat, threshold float32) ([]hit, error) {
	if tmpl.Empty() || tmpl.Cols() > src.Cols() || tmpl.Rows() > src.Rows() {
		return nil, nil
	}
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(src, tmpl, &result, gocv.TmCcoeffNormed, mask)

	data, err := result.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	cols := result.Cols()
	var out []hit
	for i, v := range data {
		if v >= threshold {
			out = append(out, hit{Point: image.Pt(i%cols, i/cols), score: v})
		}
	}
	return out, nil
}
