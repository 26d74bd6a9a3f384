package input

import (
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tootechautomation/dfmarketbot/internal/layout"
)

type fakeBackend struct {
	events  []string
	x, y    int
	failKey string
}

func (f *fakeBackend) Move(x, y int) {
	f.x, f.y = x, y
	f.events = append(f.events, fmt.Sprintf("move %d,%d", x, y))
}
func (f *fakeBackend) Click(button string) { f.events = append(f.events, "click "+button) }
func (f *fakeBackend) KeyTap(key string) error {
	f.events = append(f.events, "tap "+key)
	return nil
}
func (f *fakeBackend) KeyToggle(key, dir string) error {
	if key == f.failKey && dir == "down" {
		return errors.New("unknown key")
	}
	f.events = append(f.events, dir+" "+key)
	return nil
}
func (f *fakeBackend) TypeStr(s string)     { f.events = append(f.events, "type "+s) }
func (f *fakeBackend) MousePos() (int, int) { return f.x, f.y }

func noSleep(time.Duration) {}

func TestClickAppliesWindowOffset(t *testing.T) {
	b := &fakeBackend{}
	e := NewWithBackend(b, image.Pt(100, 40), noSleep)

	e.Click(layout.Point{X: 10, Y: 20})
	e.RightClick(layout.Point{X: 1, Y: 2})

	assert.Equal(t, []string{"move 110,60", "click left", "move 101,42", "click right"}, b.events)
}

func TestMousePositionRemovesOffset(t *testing.T) {
	b := &fakeBackend{x: 500, y: 300}
	e := NewWithBackend(b, image.Pt(100, 40), noSleep)
	assert.Equal(t, layout.Point{X: 400, Y: 260}, e.MousePosition())

	e.SetOffset(image.Point{})
	assert.Equal(t, layout.Point{X: 500, Y: 300}, e.MousePosition())
}

func TestMoveRoundTripsThroughOffset(t *testing.T) {
	b := &fakeBackend{}
	e := NewWithBackend(b, image.Pt(-50, 25), noSleep)
	p := layout.Point{X: 640, Y: 480}
	e.Move(p)
	assert.Equal(t, p, e.MousePosition())
}

func TestComboPressesInOrderReleasesInReverse(t *testing.T) {
	b := &fakeBackend{}
	var slept []time.Duration
	e := NewWithBackend(b, image.Point{}, func(d time.Duration) { slept = append(slept, d) })

	assert.NoError(t, e.Combo("ctrl", "a"))
	assert.Equal(t, []string{"down ctrl", "down a", "up a", "up ctrl"}, b.events)
	assert.Len(t, slept, 4)
	assert.Equal(t, comboGap, slept[0])
}

func TestComboReleasesHeldKeysOnError(t *testing.T) {
	b := &fakeBackend{failKey: "d"}
	e := NewWithBackend(b, image.Point{}, noSleep)

	assert.Error(t, e.Combo("alt", "d"))
	assert.Equal(t, []string{"down alt", "up alt"}, b.events)
}

func TestTypeTextPerCharacter(t *testing.T) {
	b := &fakeBackend{}
	e := NewWithBackend(b, image.Point{}, noSleep)
	e.TypeText("140")
	assert.Equal(t, []string{"type 1", "type 4", "type 0"}, b.events)
}

func TestKeys(t *testing.T) {
	b := &fakeBackend{}
	e := NewWithBackend(b, image.Point{}, noSleep)
	assert.NoError(t, e.KeyTap("esc"))
	assert.NoError(t, e.KeyDown("shift"))
	assert.NoError(t, e.KeyUp("shift"))
	assert.Equal(t, []string{"tap esc", "down shift", "up shift"}, b.events)
}
