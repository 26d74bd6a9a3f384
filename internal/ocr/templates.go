package ocr

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"
)

// DefaultFont names the glyph group loaded from the bare 0.png..9.png files.
const DefaultFont = "default"

const fallbackResolution = "1920x1080"

// iconThresholds lists the icon templates and their binarization threshold.
var iconThresholds = map[string]float64{
	"option_failed":      127,
	"option_failed_2":    127,
	"sell":               127,
	"equipment":          127,
	"enter_teqingchu":    50,
	"equipment_scheme":   50,
	"xing_qian_bei_zhan": 127,
	"start_action":       127,
	"start_game":         127,
	"app_ver":            127,
	"pei_zhuang":         127,
}

// Font is one glyph group.
type Font struct {
	Name   string
	glyphs map[rune]gocv.Mat
}

// Complete reports whether all ten digits are present.
func (f *Font) Complete() bool {
	for d := '0'; d <= '9'; d++ {
		if _, ok := f.glyphs[d]; !ok {
			return false
		}
	}
	return true
}

// Chars returns the glyph characters, digits first.
func (f *Font) Chars() []rune {
	out := make([]rune, 0, len(f.glyphs))
	for r := range f.glyphs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (f *Font) Glyph(r rune) (gocv.Mat, bool) {
	m, ok := f.glyphs[r]
	return m, ok
}

// TemplateSet holds the preprocessed glyph and icon templates.
type TemplateSet struct {
	fonts map[string]*Font
	icons map[string]gocv.Mat
}

func NewTemplateSet() *TemplateSet {
	return &TemplateSet{fonts: map[string]*Font{}, icons: map[string]gocv.Mat{}}
}

// glyphPrep returns the threshold (0 for Otsu) and whether the glyph is
// cropped to its outline.
func glyphPrep(font string) (float64, bool) {
	switch font {
	case DefaultFont:
		return 127, false
	case "g":
		return 50, true
	default:
		return 0, true
	}
}

// AddGlyph preprocesses img with the rules of its font and stores it.
func (s *TemplateSet) AddGlyph(font string, ch rune, img image.Image) error {
	gray, err := toGray(img)
	if err != nil {
		return err
	}
	defer gray.Close()
	return s.addGlyphMat(font, ch, gray)
}

func (s *TemplateSet) addGlyphMat(font string, ch rune, gray gocv.Mat) error {
	thresh, crop := glyphPrep(font)
	bin := binarize(gray, thresh)
	if crop {
		cropped := cropToOutline(bin)
		bin.Close()
		bin = cropped
	}
	if bin.Empty() {
		bin.Close()
		return fmt.Errorf("glyph %s/%c is empty", font, ch)
	}

	f, ok := s.fonts[font]
	if !ok {
		f = &Font{Name: font, glyphs: map[rune]gocv.Mat{}}
		s.fonts[font] = f
	}
	if old, ok := f.glyphs[ch]; ok {
		old.Close()
	}
	f.glyphs[ch] = bin
	return nil
}

// AddIcon stores a binarized icon template.
func (s *TemplateSet) AddIcon(name string, img image.Image, threshold float64) error {
	gray, err := toGray(img)
	if err != nil {
		return err
	}
	defer gray.Close()
	s.addIconMat(name, gray, threshold)
	return nil
}

func (s *TemplateSet) addIconMat(name string, gray gocv.Mat, threshold float64) {
	if old, ok := s.icons[name]; ok {
		old.Close()
	}
	s.icons[name] = binarize(gray, threshold)
}

// Font returns a complete font by name.
func (s *TemplateSet) Font(name string) (*Font, bool) {
	f, ok := s.fonts[name]
	if !ok || !f.Complete() {
		return nil, false
	}
	return f, true
}

// Fonts returns the complete fonts sorted by name.
func (s *TemplateSet) Fonts() []*Font {
	names := make([]string, 0, len(s.fonts))
	for n, f := range s.fonts {
		if f.Complete() {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	out := make([]*Font, 0, len(names))
	for _, n := range names {
		out = append(out, s.fonts[n])
	}
	return out
}

func (s *TemplateSet) Icon(name string) (gocv.Mat, bool) {
	m, ok := s.icons[name]
	return m, ok
}

func (s *TemplateSet) Close() {
	for _, f := range s.fonts {
		for _, m := range f.glyphs {
			m.Close()
		}
	}
	for _, m := range s.icons {
		m.Close()
	}
	s.fonts = map[string]*Font{}
	s.icons = map[string]gocv.Mat{}
}

// LoadTemplateSet reads templates/<w>x<h>. When that directory is missing
// the 1920x1080 pack is loaded and rescaled to the target width.
func LoadTemplateSet(root string, width, height int) (*TemplateSet, error) {
	dir := filepath.Join(root, fmt.Sprintf("%dx%d", width, height))
	scale := 1.0
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		dir = filepath.Join(root, fallbackResolution)
		scale = float64(width) / 1920
		log.Warn().Int("width", width).Int("height", height).Str("dir", dir).
			Float64("scale", scale).Msg("no templates for resolution, rescaling fallback pack")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("template dir: %w", err)
	}

	set := NewTemplateSet()
	for d := 0; d <= 9; d++ {
		path := filepath.Join(dir, fmt.Sprintf("%d.png", d))
		if err := set.loadGlyph(DefaultFont, rune('0'+d), path, scale); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("skip glyph")
		}
	}

	prefixes, err := fontPrefixes(dir)
	if err != nil {
		set.Close()
		return nil, err
	}
	for _, p := range prefixes {
		for d := 0; d <= 9; d++ {
			path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", p, d))
			if err := set.loadGlyph(p, rune('0'+d), path, scale); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("file", path).Msg("skip glyph")
			}
		}
	}
	slash := filepath.Join(dir, "w_slash.png")
	if err := set.loadGlyph("w", '/', slash, scale); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", slash).Msg("skip glyph")
	}

	for name, th := range iconThresholds {
		path := filepath.Join(dir, name+".png")
		gray, err := loadGray(path, scale)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Err(err).Str("file", path).Msg("skip icon")
			}
			continue
		}
		set.addIconMat(name, gray, th)
		gray.Close()
	}

	for name, f := range set.fonts {
		if !f.Complete() {
			log.Warn().Str("font", name).Int("glyphs", len(f.glyphs)).Msg("incomplete font ignored")
		}
	}
	if len(set.Fonts()) == 0 {
		set.Close()
		return nil, fmt.Errorf("%w in %s", ErrNoFonts, dir)
	}
	log.Info().Str("dir", dir).Int("fonts", len(set.Fonts())).Int("icons", len(set.icons)).Msg("templates loaded")
	return set, nil
}

func (s *TemplateSet) loadGlyph(font string, ch rune, path string, scale float64) error {
	gray, err := loadGray(path, scale)
	if err != nil {
		return err
	}
	defer gray.Close()
	return s.addGlyphMat(font, ch, gray)
}

// fontPrefixes finds the <prefix>_<digit>.png groups in dir.
func fontPrefixes(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*_*.png"))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), ".png")
		parts := strings.Split(stem, "_")
		if len(parts) != 2 || len(parts[1]) != 1 || parts[1][0] < '0' || parts[1][0] > '9' {
			continue
		}
		seen[parts[0]] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func loadGray(path string, scale float64) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.Mat{}, err
	}
	if scale == 1 {
		m := gocv.IMRead(path, gocv.IMReadGrayScale)
		if m.Empty() {
			m.Close()
			return gocv.Mat{}, fmt.Errorf("cannot decode %s", path)
		}
		return m, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return gocv.ImageGrayToMatGray(rescaleGray(src, scale))
}

func rescaleGray(src image.Image, scale float64) *image.Gray {
	b := src.Bounds()
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func toGray(img image.Image) (gocv.Mat, error) {
	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer bgr.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// binarize thresholds src; thresh 0 selects Otsu.
func binarize(src gocv.Mat, thresh float64) gocv.Mat {
	dst := gocv.NewMat()
	typ := gocv.ThresholdBinary
	if thresh == 0 {
		typ |= gocv.ThresholdOtsu
	}
	gocv.Threshold(src, &dst, float32(thresh), 255, typ)
	return dst
}

// cropToOutline cuts bin down to the bounding box of its first outer contour.
func cropToOutline(bin gocv.Mat) gocv.Mat {
	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return bin.Clone()
	}
	r := gocv.BoundingRect(contours.At(0))
	roi := bin.Region(r)
	defer roi.Close()
	return roi.Clone()
}
