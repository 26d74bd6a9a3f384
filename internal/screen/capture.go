// Package screen grabs regions of the game display.
package screen

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
)

// Capturer returns the pixels of a region given in game coordinates.
type Capturer interface {
	Capture(box layout.Box) (image.Image, error)
	Size() (width, height int)
}

// Display captures from one monitor, or from a game window placed on it.
type Display struct {
	origin image.Point
	width  int
	height int
	grab   func(image.Rectangle) (*image.RGBA, error)
}

// NewDisplay resolves the capture area from the screen settings.
func NewDisplay(cfg config.ScreenConfig) (*Display, error) {
	if n := screenshot.NumActiveDisplays(); cfg.Display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", cfg.Display, n)
	}
	b := screenshot.GetDisplayBounds(cfg.Display)
	return newDisplay(cfg, b, screenshot.CaptureRect), nil
}

func newDisplay(cfg config.ScreenConfig, bounds image.Rectangle, grab func(image.Rectangle) (*image.RGBA, error)) *Display {
	d := &Display{origin: bounds.Min, width: bounds.Dx(), height: bounds.Dy(), grab: grab}
	if cfg.Window.Enabled {
		d.origin = image.Pt(cfg.Window.X, cfg.Window.Y)
		d.width, d.height = cfg.Window.Width, cfg.Window.Height
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		d.width, d.height = cfg.Width, cfg.Height
	}
	return d
}

// Size is the resolution the coordinate table is resolved against.
func (d *Display) Size() (int, int) { return d.width, d.height }

// Origin is the top-left corner of the game area in desktop coordinates.
func (d *Display) Origin() image.Point { return d.origin }

// Capture grabs box, translated by the display or window origin.
func (d *Display) Capture(box layout.Box) (image.Image, error) {
	r := d.rect(box)
	if r.Empty() {
		return nil, errors.New("empty capture region")
	}
	img, err := d.grab(r)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", r, err)
	}
	return img, nil
}

// CaptureAll grabs the whole game area.
func (d *Display) CaptureAll() (image.Image, error) {
	return d.Capture(layout.Box{X1: 0, Y1: 0, X2: d.width, Y2: d.height})
}

func (d *Display) rect(box layout.Box) image.Rectangle {
	return box.Rect().Add(d.origin)
}
