package ocr

import (
	"image"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// ContoursEngine segments the binarized capture into glyph-sized outlines
// and scores each outline against every glyph of every font. Icon lookups
// are the same as TemplateEngine's.
type ContoursEngine struct {
	*TemplateEngine
}

func NewContoursEngine(base *TemplateEngine) *ContoursEngine {
	return &ContoursEngine{TemplateEngine: base}
}

// RegionScore is the best glyph for one outline.
type RegionScore struct {
	Char       rune
	Confidence float32
}

// FontScores holds one font's per-outline results in left-to-right order.
type FontScores struct {
	Font    string
	Regions []RegionScore
}

type FontChoice struct {
	Font    string
	Regions []RegionScore
	Average float64
}

// Text returns the characters whose confidence exceeds floor.
func (c FontChoice) Text(floor float32) string {
	var b strings.Builder
	for _, r := range c.Regions {
		if r.Confidence > floor {
			b.WriteRune(r.Char)
		}
	}
	return b.String()
}

// SelectFont picks the font with the highest mean confidence over the
// outlines it recognised above floor. Ties keep the earlier font.
func SelectFont(candidates []FontScores, floor float32) (FontChoice, bool) {
	var best FontChoice
	found := false
	for _, c := range candidates {
		var sum float64
		n := 0
		for _, r := range c.Regions {
			if r.Confidence > floor {
				sum += float64(r.Confidence)
				n++
			}
		}
		if n == 0 {
			continue
		}
		avg := sum / float64(n)
		if !found || avg > best.Average {
			best = FontChoice{Font: c.Font, Regions: c.Regions, Average: avg}
			found = true
		}
	}
	return best, found
}

// keepRegion filters outlines that cannot be a digit.
func keepRegion(r image.Rectangle) bool {
	w, h := r.Dx(), r.Dy()
	if w <= 5 || w >= 100 || h <= 10 || h >= 100 {
		return false
	}
	aspect := float64(w) / float64(h)
	return aspect > 0.3 && aspect < 1.2
}

func digitRegions(bin gocv.Mat) []image.Rectangle {
	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	var out []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		if keepRegion(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Min.X < out[j].Min.X })
	return out
}

func (e *ContoursEngine) ImageToString(img image.Image, opts ...Option) (string, error) {
	o := resolveOptions(opts)
	o.binarize = true
	src, err := e.prepare(img, o)
	if err != nil {
		return "", err
	}
	defer src.Close()

	regions := digitRegions(src)
	if len(regions) == 0 {
		return "", nil
	}

	fonts := e.fontsFor(o.font)
	candidates := make([]FontScores, 0, len(fonts))
	for _, f := range fonts {
		fs := FontScores{Font: f.Name}
		for _, r := range regions {
			fs.Regions = append(fs.Regions, e.scoreRegion(src, r, f))
		}
		candidates = append(candidates, fs)
	}

	choice, ok := SelectFont(candidates, e.threshold)
	if !ok {
		return "", nil
	}
	return choice.Text(e.threshold), nil
}

func (e *ContoursEngine) scoreRegion(src gocv.Mat, r image.Rectangle, f *Font) RegionScore {
	roi := src.Region(r)
	defer roi.Close()

	best := RegionScore{}
	for d := '0'; d <= '9'; d++ {
		glyph, ok := f.Glyph(d)
		if !ok {
			continue
		}
		resized := gocv.NewMat()
		gocv.Resize(roi, &resized, image.Pt(glyph.Cols(), glyph.Rows()), 0, 0, gocv.InterpolationNearestNeighbor)
		result := gocv.NewMat()
		mask := gocv.NewMat()
		gocv.MatchTemplate(resized, glyph, &result, gocv.TmCcoeffNormed, mask)
		_, maxVal, _, _ := gocv.MinMaxLoc(result)
		resized.Close()
		result.Close()
		mask.Close()
		if maxVal > best.Confidence {
			best = RegionScore{Char: d, Confidence: maxVal}
		}
	}
	return best
}
