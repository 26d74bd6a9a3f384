// Package detector reads prices, balances and UI states off the game screen.
package detector

import (
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ocr"
	"github.com/tootechautomation/dfmarketbot/internal/screen"
)

const (
	valuePrice   = "price"
	valueBalance = "balance"
)

// lowResWidth switches several reads to the fonts rendered at 1920 wide.
const lowResWidth = 1920

// Base holds what every detector shares: capture, OCR and the resolved layout.
type Base struct {
	capture screen.Capturer
	engine  ocr.Engine
	layout  layout.Layout
	cfg     config.DetectionConfig

	sleep func(time.Duration)
	now   func() time.Time
	log   zerolog.Logger
}

func newBase(c screen.Capturer, e ocr.Engine, l layout.Layout, cfg config.DetectionConfig, component string) *Base {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 30
	}
	return &Base{
		capture: c,
		engine:  e,
		layout:  l,
		cfg:     cfg,
		sleep:   time.Sleep,
		now:     time.Now,
		log:     log.With().Str("component", component).Logger(),
	}
}

// Layout returns the coordinate table the detector reads from.
func (b *Base) Layout() layout.Layout { return b.layout }

func (b *Base) lowRes() bool { return b.layout.Width == lowResWidth }

// DetectBalance reads the wallet. The caller hovers the wallet first.
func (b *Base) DetectBalance() (int, error) {
	return b.detectValue(b.layout.Balance.Region, valueBalance, b.cfg.AbnormalFloor,
		ocr.WithFont("w"), ocr.WithThreshold(100))
}

// detectValue captures box and OCRs it until a number at or above floor
// comes back, up to the configured attempts.
func (b *Base) detectValue(box layout.Box, name string, floor int, opts ...ocr.Option) (int, error) {
	var deadline time.Time
	if b.cfg.MaxWait > 0 {
		deadline = b.now().Add(b.cfg.MaxWait)
	}

	var (
		last      string
		lastErr   error
		captureOK bool
		sawLow    bool
		attempt   int
	)
	for attempt = 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			b.sleep(b.cfg.AttemptInterval)
		}
		if !deadline.IsZero() && b.now().After(deadline) {
			return 0, &DetectionError{Kind: KindTimeout, Value: name, Attempts: attempt - 1, Last: last, Err: lastErr}
		}

		img, err := b.capture.Capture(box)
		if err != nil {
			lastErr = err
			continue
		}
		captureOK = true

		text, err := b.engine.ImageToString(img, opts...)
		if err != nil {
			lastErr = err
			continue
		}
		last = text
		v, ok := parseDigits(text)
		if !ok {
			continue
		}
		if v < floor {
			sawLow = true
			b.log.Debug().Str("value", name).Int("read", v).Int("floor", floor).Int("attempt", attempt).Msg("implausible read, retrying")
			continue
		}
		b.log.Debug().Str("value", name).Int("read", v).Int("attempt", attempt).Msg("detected")
		return v, nil
	}

	kind := KindNotFound
	switch {
	case sawLow:
		kind = KindImplausible
	case !captureOK:
		kind = KindCapture
	}
	return 0, &DetectionError{Kind: kind, Value: name, Attempts: b.cfg.MaxAttempts, Last: last, Err: lastErr}
}

// parseDigits keeps only the digits of s.
func parseDigits(s string) (int, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, false
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return v, true
}

// probe reports whether icon is visible inside box. Failures read as false.
func (b *Base) probe(box layout.Box, icon string) bool {
	img, err := b.capture.Capture(box)
	if err != nil {
		b.log.Warn().Err(err).Str("icon", icon).Msg("probe capture failed")
		return false
	}
	ok, err := b.engine.DetectTemplate(img, icon)
	if err != nil {
		b.log.Warn().Err(err).Str("icon", icon).Msg("probe failed")
		return false
	}
	return ok
}

func (b *Base) grab(box layout.Box) (image.Image, error) {
	return b.capture.Capture(box)
}
