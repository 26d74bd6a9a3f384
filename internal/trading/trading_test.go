package trading

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
)

// recorder logs every input action as text.
type recorder struct {
	mu      sync.Mutex
	actions []string
	pos     layout.Point
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.actions = append(r.actions, s)
	r.mu.Unlock()
}

func (r *recorder) Move(p layout.Point)  { r.add(moved(p)) }
func (r *recorder) Click(p layout.Point) { r.add(clicked(p)) }
func (r *recorder) KeyTap(k string) error {
	r.add("key " + k)
	return nil
}
func (r *recorder) Combo(keys ...string) error {
	r.add("combo " + strings.Join(keys, "+"))
	return nil
}
func (r *recorder) TypeText(s string)           { r.add("type " + s) }
func (r *recorder) MousePosition() layout.Point { return r.pos }

func (r *recorder) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.actions {
		if a == action {
			n++
		}
	}
	return n
}

func clicked(p layout.Point) string { return fmt.Sprintf("click %d,%d", p.X, p.Y) }
func moved(p layout.Point) string   { return fmt.Sprintf("move %d,%d", p.X, p.Y) }

type memJournal struct {
	trades   []ledger.Trade
	onRecord func(ledger.Trade)
}

func (j *memJournal) Record(_ context.Context, t ledger.Trade) error {
	j.trades = append(j.trades, t)
	if j.onRecord != nil {
		j.onRecord(t)
	}
	return nil
}

func (j *memJournal) kinds() []ledger.Kind {
	out := make([]ledger.Kind, 0, len(j.trades))
	for _, t := range j.trades {
		out = append(out, t.Kind)
	}
	return out
}

type stopFlag struct{ stop atomic.Bool }

func (s *stopFlag) Stopping() bool { return s.stop.Load() }

type fakeProcs struct {
	running bool
	calls   int
}

func (f *fakeProcs) Running(context.Context) (bool, error) {
	f.calls++
	return f.running, nil
}

type harness struct {
	rec     *recorder
	journal *memJournal
	stop    *stopFlag
	layout  layout.Layout
	slept   time.Duration
}

func newHarness() *harness {
	return &harness{
		rec:     &recorder{pos: layout.Point{X: 1200, Y: 600}},
		journal: &memJournal{},
		stop:    &stopFlag{},
		layout:  layout.Resolve(2560, 1440),
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Executor: h.rec,
		Layout:   h.layout,
		Journal:  h.journal,
		Stopper:  h.stop,
		Sleep:    func(d time.Duration) { h.slept += d },
	}
}

func TestPacer(t *testing.T) {
	var slept []time.Duration
	p := NewPacer(config.ModeRolling, func(d time.Duration) { slept = append(slept, d) })
	delays, err := config.DelayConfig{}.With("rolling_mode", "after_buy", 2)
	assert.NoError(t, err)
	p.Use(delays)

	p.Sleep("after_buy")
	p.Sleep("unknown_operation")
	p.Pause(0)
	p.Pause(100 * time.Millisecond)
	assert.Equal(t, []time.Duration{2 * time.Second, 100 * time.Millisecond}, slept)
}

func TestHardStop(t *testing.T) {
	assert.True(t, IsHardStop(ErrInventoryFull))
	assert.True(t, IsHardStop(fmt.Errorf("wrapped: %w", ErrGameNotRunning)))
	assert.False(t, IsHardStop(ErrNoSellableItem))

	err := &CycleError{Mode: config.ModeRolling, Cycle: 3, Err: ErrSellWindowStuck}
	assert.ErrorIs(t, err, ErrSellWindowStuck)
	assert.Equal(t, "rolling cycle 3: sell window did not open", err.Error())
}
