package detector

import (
	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ocr"
	"github.com/tootechautomation/dfmarketbot/internal/screen"
)

// Hoarding reads the single-item market view.
type Hoarding struct {
	*Base
}

func NewHoarding(c screen.Capturer, e ocr.Engine, l layout.Layout, cfg config.DetectionConfig) *Hoarding {
	return &Hoarding{Base: newBase(c, e, l, cfg, "hoarding-detector")}
}

// DetectPrice reads the listed unit price for the item type.
func (h *Hoarding) DetectPrice(convertible bool) (int, error) {
	thresh := 127.0
	if h.lowRes() {
		thresh = 80
	}
	return h.detectValue(h.layout.Market.PriceArea(convertible), valuePrice, h.cfg.AbnormalFloor,
		ocr.WithThreshold(thresh), ocr.WithoutBinarize())
}
