// Package input injects mouse and keyboard events into the game.
package input

import (
	"image"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog"

	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/logger"
)

// Backend is the raw event source. The default one drives robotgo.
type Backend interface {
	Move(x, y int)
	Click(button string)
	KeyTap(key string) error
	KeyToggle(key, direction string) error
	TypeStr(s string)
	MousePos() (int, int)
}

const (
	comboGap  = 30 * time.Millisecond
	typeDelay = 40 * time.Millisecond
	clickWait = 60 * time.Millisecond
)

// Executor translates game coordinates to desktop coordinates and
// serialises injected events.
type Executor struct {
	mu      sync.Mutex
	backend Backend
	offset  image.Point
	sleep   func(time.Duration)
	log     zerolog.Logger
}

// New returns an executor driving robotgo. offset is the game window origin
// (zero in fullscreen).
func New(offset image.Point) *Executor {
	return NewWithBackend(robotgoBackend{}, offset, time.Sleep)
}

func NewWithBackend(b Backend, offset image.Point, sleep func(time.Duration)) *Executor {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Executor{backend: b, offset: offset, sleep: sleep, log: logger.For("input")}
}

// SetOffset moves the coordinate origin, e.g. after the window moved.
func (e *Executor) SetOffset(offset image.Point) {
	e.mu.Lock()
	e.offset = offset
	e.mu.Unlock()
}

func (e *Executor) Move(p layout.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	x, y := e.toScreen(p)
	e.backend.Move(x, y)
}

func (e *Executor) Click(p layout.Point) {
	e.click(p, "left")
}

func (e *Executor) RightClick(p layout.Point) {
	e.click(p, "right")
}

func (e *Executor) click(p layout.Point, button string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	x, y := e.toScreen(p)
	e.backend.Move(x, y)
	e.sleep(clickWait)
	e.backend.Click(button)
	e.log.Debug().Int("x", x).Int("y", y).Str("button", button).Msg("click")
}

func (e *Executor) KeyTap(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend.KeyTap(key)
}

func (e *Executor) KeyDown(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend.KeyToggle(key, "down")
}

func (e *Executor) KeyUp(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend.KeyToggle(key, "up")
}

// Combo holds keys down in order and releases them in reverse, e.g.
// Combo("ctrl", "a").
func (e *Executor) Combo(keys ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	pressed := 0
	for _, k := range keys {
		if err = e.backend.KeyToggle(k, "down"); err != nil {
			break
		}
		pressed++
		e.sleep(comboGap)
	}
	for i := pressed - 1; i >= 0; i-- {
		if uerr := e.backend.KeyToggle(keys[i], "up"); uerr != nil && err == nil {
			err = uerr
		}
		e.sleep(comboGap)
	}
	return err
}

// TypeText types s one character at a time.
func (e *Executor) TypeText(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range s {
		e.backend.TypeStr(string(r))
		e.sleep(typeDelay)
	}
}

// MousePosition returns the cursor in game coordinates.
func (e *Executor) MousePosition() layout.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	x, y := e.backend.MousePos()
	return layout.Point{X: x - e.offset.X, Y: y - e.offset.Y}
}

func (e *Executor) toScreen(p layout.Point) (int, int) {
	return p.X + e.offset.X, p.Y + e.offset.Y
}

// =========================
// robotgo
// =========================

type robotgoBackend struct{}

func (robotgoBackend) Move(x, y int)       { robotgo.MoveMouse(x, y) }
func (robotgoBackend) Click(button string) { robotgo.MouseClick(button, false) }
func (robotgoBackend) KeyTap(key string) error {
	return robotgo.KeyTap(key)
}
func (robotgoBackend) KeyToggle(key, direction string) error {
	return robotgo.KeyToggle(key, direction)
}
func (robotgoBackend) TypeStr(s string)     { robotgo.TypeStr(s) }
func (robotgoBackend) MousePos() (int, int) { return robotgo.GetMousePos() }
