package detector

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ocr"
	"github.com/tootechautomation/dfmarketbot/internal/screen"
)

const (
	gridRows      = 10
	gridColumns   = 9
	slotTolerance = 20
)

// emptySlot is the stash background colour of an empty cell.
var emptySlot = color.RGBA{R: 26, G: 31, B: 34, A: 255}

// Rolling reads the loadout, stash and sell dialog screens.
type Rolling struct {
	*Base
}

func NewRolling(c screen.Capturer, e ocr.Engine, l layout.Layout, cfg config.DetectionConfig) *Rolling {
	return &Rolling{Base: newBase(c, e, l, cfg, "rolling-detector")}
}

// DetectPrice reads the total loadout price.
func (r *Rolling) DetectPrice() (int, error) {
	thresh := 127.0
	if r.lowRes() {
		thresh = 80
	}
	return r.detectValue(r.layout.Loadout.PriceArea, valuePrice, r.cfg.AbnormalFloor, ocr.WithThreshold(thresh))
}

// =========================
// Template probes
// =========================

func (r *Rolling) PurchaseFailed() bool {
	box := r.layout.Loadout.FailureCheck
	return r.probe(box, "option_failed") || r.probe(box, "option_failed_2")
}

// InEquipmentScreen reports the equipment view opened by a stray click.
func (r *Rolling) InEquipmentScreen() bool {
	return r.probe(r.layout.Recovery.EquipmentCheck, "equipment")
}

// LoadoutKeyIgnored reports the screen where the loadout key does nothing.
func (r *Rolling) LoadoutKeyIgnored() bool {
	return r.probe(r.layout.Recovery.EnterLoadoutHint, "enter_teqingchu") &&
		!r.probe(r.layout.Recovery.EquipmentSchemeButton, "equipment_scheme")
}

func (r *Rolling) InLobby() bool {
	return r.probe(r.layout.Recovery.PrepareArea, "xing_qian_bei_zhan") || r.ReadyShortcut()
}

// ReadyShortcut reports the lobby shortcut straight into the loadout view.
func (r *Rolling) ReadyShortcut() bool {
	return r.probe(r.layout.Recovery.ReadyShortcutArea, "pei_zhuang")
}

func (r *Rolling) MapSelected() bool {
	return r.probe(r.layout.Recovery.StartActionArea, "start_action")
}

func (r *Rolling) SellWindowReady() bool {
	return r.probe(r.layout.Loadout.FailureCheck, "sell")
}

// GameStarted reports the mode select page shown after the client boots.
func (r *Rolling) GameStarted() bool {
	return r.probe(r.layout.Launcher.AppVersionArea, "app_ver")
}

// =========================
// Stash
// =========================

// SellableItem scans the stash grid for the first occupied cell and returns
// its centre in screen coordinates.
func (r *Rolling) SellableItem() (layout.Point, bool) {
	grid := r.layout.Storage.Grid
	cell := r.layout.Storage.CellSize
	img, err := r.grab(grid)
	if err != nil {
		r.log.Warn().Err(err).Msg("stash capture failed")
		return layout.Point{}, false
	}

	start := layout.Point{X: cell.X / 2, Y: cell.Y / 2}
	pos := start
	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridColumns; col++ {
			c, ok := ocr.PixelColor(img, pos.X, pos.Y)
			if ok && !isEmptySlot(c) {
				r.log.Info().Int("row", row).Int("col", col).
					Uints8("rgb", []uint8{c.R, c.G, c.B}).Msg("sellable item")
				return layout.Point{X: grid.X1, Y: grid.Y1}.Add(pos), true
			}
			pos.X += cell.X + 1
		}
		pos.X = start.X
		pos.Y += cell.Y + 1
	}
	return layout.Point{}, false
}

func isEmptySlot(c color.RGBA) bool {
	within := func(v, ref uint8) bool {
		d := int(v) - int(ref)
		return d > -slotTolerance && d < slotTolerance
	}
	return within(c.R, emptySlot.R) && within(c.G, emptySlot.G) && within(c.B, emptySlot.B)
}

// =========================
// Sell dialog
// =========================

// SellQuantity reads the "listed/cap" counter. An empty read is (0, 0).
func (r *Rolling) SellQuantity() (int, int, error) {
	img, err := r.grab(r.layout.SellDialog.SellNumArea)
	if err != nil {
		return 0, 0, &DetectionError{Kind: KindCapture, Value: "sell quantity", Attempts: 1, Err: err}
	}
	text, err := r.engine.ImageToString(img, ocr.WithFont("w"), ocr.WithoutBinarize())
	if err != nil {
		return 0, 0, &DetectionError{Kind: KindNotFound, Value: "sell quantity", Attempts: 1, Err: err}
	}
	return parseQuantity(text)
}

func parseQuantity(text string) (int, int, error) {
	if text == "" {
		return 0, 0, nil
	}
	var curS, maxS string
	if i := strings.IndexByte(text, '/'); i >= 0 {
		curS, maxS = text[:i], text[i+1:]
	} else {
		curS, maxS = text[:1], text[1:]
	}
	cur, err1 := strconv.Atoi(curS)
	capacity, err2 := strconv.Atoi(maxS)
	if err1 != nil || err2 != nil {
		return 0, 0, &DetectionError{Kind: KindNotFound, Value: "sell quantity", Attempts: 1, Last: text,
			Err: fmt.Errorf("malformed counter %q", text)}
	}
	return cur, capacity, nil
}

func (r *Rolling) MinSellPrice() (int, error) {
	opts := []ocr.Option{ocr.WithFont("w"), ocr.WithThreshold(50)}
	if r.lowRes() {
		opts = []ocr.Option{ocr.WithFont("g"), ocr.WithoutBinarize()}
	}
	return r.detectValue(r.layout.SellDialog.MinPriceArea, "min sell price", 0, opts...)
}

// SecondMinSellPrice reads the bar next to the minimum price bar.
func (r *Rolling) SecondMinSellPrice() (int, error) {
	opts := []ocr.Option{ocr.WithFont("w"), ocr.WithThreshold(50)}
	if r.lowRes() {
		opts = []ocr.Option{ocr.WithFont("g"), ocr.WithoutBinarize()}
	}
	return r.detectValue(r.layout.SellDialog.SecondMinPriceArea, "second min sell price", 0, opts...)
}

// MinSellPriceCount reads how many units are listed at the minimum price.
func (r *Rolling) MinSellPriceCount() (int, error) {
	font := "w"
	if r.lowRes() {
		font = "c"
	}
	return r.detectValue(r.layout.SellDialog.MinPriceCountArea, "min price count", 0,
		ocr.WithFont(font), ocr.WithoutBinarize())
}

// ExpectedRevenue reads the after-fee revenue of the listing.
func (r *Rolling) ExpectedRevenue() (int, error) {
	font := "w"
	if r.lowRes() {
		font = "g"
	}
	v, err := r.detectValue(r.layout.SellDialog.ExpectedRevenue, "expected revenue", 0,
		ocr.WithFont(font), ocr.WithoutBinarize())
	if err != nil {
		return 0, err
	}
	return correctRevenue(v), nil
}

// correctRevenue drops the help icon beside the revenue, which reads as a
// trailing 7.
func correctRevenue(v int) int {
	if v%10 == 7 {
		return (v - 7) / 10
	}
	return v
}

// CurrentSellPrice reads the unit price typed into the listing.
func (r *Rolling) CurrentSellPrice() (int, error) {
	return r.detectValue(r.layout.SellDialog.PriceTextArea, "sell price", 0, ocr.WithFont("w"))
}

func (r *Rolling) TotalSellPrice() (int, error) {
	return r.detectValue(r.layout.SellDialog.TotalPriceArea, "total sell price", 0,
		ocr.WithFont("w"), ocr.WithThreshold(80))
}
