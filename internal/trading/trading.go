// Package trading runs the hoarding and rolling state machines: one call to
// ExecuteCycle reads the screen, decides and drives the input.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/detector"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
	"github.com/tootechautomation/dfmarketbot/internal/strategy"
)

// Hard stops end the session without being a cycle failure.
var (
	ErrInventoryFull  = errors.New("inventory presumed full after consecutive failed buys")
	ErrGameNotRunning = errors.New("game process is not running")
)

// Recoverable sell sub-cycle outcomes.
var (
	ErrNoSellableItem     = errors.New("no sellable item in stash")
	ErrListingCapExceeded = errors.New("listing count exceeds the market cap")
	ErrBelowMinSellPrice  = errors.New("market minimum below configured sell floor")
	ErrSellWindowStuck    = errors.New("sell window did not open")
)

var errStopped = errors.New("stop requested")

// CycleError wraps whatever went wrong inside one cycle.
type CycleError struct {
	Mode  config.Mode
	Cycle int
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s cycle %d: %v", e.Mode, e.Cycle, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// IsHardStop reports whether err ended the session on purpose.
func IsHardStop(err error) bool {
	return errors.Is(err, ErrInventoryFull) || errors.Is(err, ErrGameNotRunning)
}

// priceUnreadable reports a price read that came back empty or implausible
// on a readable screen. The shown offer is then refreshed for free.
func priceUnreadable(err error) bool {
	if !errors.Is(err, detector.ErrPriceDetection) {
		return false
	}
	return detector.IsKind(err, detector.KindNotFound) ||
		detector.IsKind(err, detector.KindImplausible) ||
		detector.IsKind(err, detector.KindTimeout)
}

// Mode is one trading state machine.
type Mode interface {
	Prepare(ctx context.Context, cfg *config.Config) error
	// ExecuteCycle runs one iteration. false ends the session; a non-nil
	// error with true is a failed cycle the host logs before continuing.
	ExecuteCycle(ctx context.Context, cfg *config.Config) (bool, error)
	MarketData() strategy.MarketData
}

// Executor is the input surface the modes drive.
type Executor interface {
	Move(p layout.Point)
	Click(p layout.Point)
	KeyTap(key string) error
	Combo(keys ...string) error
	TypeText(s string)
	MousePosition() layout.Point
}

type HoardingDetector interface {
	DetectPrice(convertible bool) (int, error)
	DetectBalance() (int, error)
}

type RollingDetector interface {
	DetectPrice() (int, error)
	DetectBalance() (int, error)

	PurchaseFailed() bool
	InEquipmentScreen() bool
	LoadoutKeyIgnored() bool
	InLobby() bool
	ReadyShortcut() bool
	MapSelected() bool
	SellWindowReady() bool
	GameStarted() bool

	SellableItem() (layout.Point, bool)
	SellQuantity() (int, int, error)
	MinSellPrice() (int, error)
	SecondMinSellPrice() (int, error)
	MinSellPriceCount() (int, error)
	ExpectedRevenue() (int, error)
	CurrentSellPrice() (int, error)
	TotalSellPrice() (int, error)
}

// Journal persists trades.
type Journal interface {
	Record(ctx context.Context, t ledger.Trade) error
}

// ProcessChecker reports whether the game client is alive.
type ProcessChecker interface {
	Running(ctx context.Context) (bool, error)
}

// Stopper is polled at every safe point.
type Stopper interface {
	Stopping() bool
}

// Status is pushed to the host after every notable step.
type Status struct {
	Text   string
	Market strategy.MarketData
}

type Reporter interface {
	Report(s Status)
}

// Deps bundles the collaborators of a mode.
type Deps struct {
	Executor Executor
	Layout   layout.Layout
	Reporter Reporter
	Journal  Journal
	Stopper  Stopper
	Sleep    func(time.Duration)
}

func (d *Deps) fill() {
	if d.Reporter == nil {
		d.Reporter = nopReporter{}
	}
	if d.Journal == nil {
		d.Journal = nopJournal{}
	}
	if d.Stopper == nil {
		d.Stopper = neverStop{}
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
}

type nopReporter struct{}

func (nopReporter) Report(Status) {}

type nopJournal struct{}

func (nopJournal) Record(context.Context, ledger.Trade) error { return nil }

type neverStop struct{}

func (neverStop) Stopping() bool { return false }

// =========================
// Pacer
// =========================

// Pacer sleeps the configured delay of an operation for one mode.
type Pacer struct {
	mode   config.Mode
	delays config.DelayConfig
	sleep  func(time.Duration)
}

func NewPacer(mode config.Mode, sleep func(time.Duration)) *Pacer {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Pacer{mode: mode, sleep: sleep}
}

// Use switches to the delays of a new config snapshot.
func (p *Pacer) Use(delays config.DelayConfig) { p.delays = delays }

// Sleep waits delays[<mode>_mode][op]; unknown operations do not wait.
func (p *Pacer) Sleep(op string) {
	if d := p.delays.Duration(p.mode.DelayKey(), op); d > 0 {
		p.sleep(d)
	}
}

// Pause waits a fixed duration.
func (p *Pacer) Pause(d time.Duration) {
	if d > 0 {
		p.sleep(d)
	}
}
