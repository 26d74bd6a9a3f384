// Package worker owns the trading session: the shared state read by the
// control surface and the loop that drives a trading mode.
package worker

import (
	"sync"
	"time"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/strategy"
	"github.com/tootechautomation/dfmarketbot/internal/trading"
)

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Running           bool                `json:"running"`
	Stopping          bool                `json:"stopping"`
	Session           string              `json:"session,omitempty"`
	Mode              config.Mode         `json:"mode,omitempty"`
	Status            string              `json:"status"`
	Market            strategy.MarketData `json:"market"`
	Cycles            int                 `json:"cycles"`
	Errors            int                 `json:"errors"`
	ConsecutiveErrors int                 `json:"consecutive_errors"`
	LastError         string              `json:"last_error,omitempty"`
	StartedAt         time.Time           `json:"started_at,omitzero"`
}

// State is shared between the worker goroutine and its controllers.
type State struct {
	mu sync.Mutex
	s  Snapshot
}

func NewState() *State {
	return &State{s: Snapshot{Status: "idle"}}
}

func (st *State) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// SetRunning marks a session as started, clearing the previous counters.
func (st *State) SetRunning(session string, mode config.Mode) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = Snapshot{
		Running:   true,
		Session:   session,
		Mode:      mode,
		Status:    "running",
		StartedAt: time.Now(),
	}
}

func (st *State) setSession(id string) {
	st.mu.Lock()
	st.s.Session = id
	st.mu.Unlock()
}

// SetStopped ends the session and keeps its final counters readable.
func (st *State) SetStopped(status string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Running = false
	st.s.Stopping = false
	st.s.Status = status
}

// RequestStop asks the running session to stop at its next safe point.
// It reports false when nothing is running.
func (st *State) RequestStop() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.s.Running {
		return false
	}
	st.s.Stopping = true
	st.s.Status = "stopping"
	return true
}

// Stopping is polled by the trading modes.
func (st *State) Stopping() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Stopping
}

// Report implements trading.Reporter.
func (st *State) Report(s trading.Status) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Status = s.Text
	st.s.Market = s.Market
}

// cycleDone counts a finished cycle and returns the consecutive error count
// before this cycle.
func (st *State) cycleDone(err error, md strategy.MarketData) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev := st.s.ConsecutiveErrors
	st.s.Cycles++
	st.s.Market = md
	if err != nil {
		st.s.Errors++
		st.s.ConsecutiveErrors++
		st.s.LastError = err.Error()
		st.s.Status = "error: " + err.Error()
	} else {
		st.s.ConsecutiveErrors = 0
	}
	return prev
}
