package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/notify"
	"github.com/tootechautomation/dfmarketbot/internal/trading"
)

var ErrAlreadyRunning = errors.New("a session is already running")

// errorNotifyEvery spaces out error notifications within one failure streak.
const errorNotifyEvery = 10

// ModeFactory builds the trading mode for a config. The state is the
// Reporter and Stopper the mode must use.
type ModeFactory func(cfg *config.Config, st *State) (trading.Mode, error)

// Sessions records session boundaries, normally the sqlite ledger.
type Sessions interface {
	StartSession(ctx context.Context, mode string, balance int) (string, error)
	EndSession(ctx context.Context) error
}

// Runner runs one session at a time.
type Runner struct {
	configs  func() *config.Config
	factory  ModeFactory
	state    *State
	notifier notify.Notifier
	sessions Sessions
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Runner)

func WithNotifier(n notify.Notifier) Option { return func(r *Runner) { r.notifier = n } }

func WithSessions(s Sessions) Option { return func(r *Runner) { r.sessions = s } }

// NewRunner takes a config source that is read once per cycle.
func NewRunner(configs func() *config.Config, factory ModeFactory, st *State, opts ...Option) *Runner {
	r := &Runner{
		configs:  configs,
		factory:  factory,
		state:    st,
		notifier: notify.Nop{},
		log:      log.With().Str("component", "worker").Logger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) State() *State { return r.state }

// Start builds the mode and runs the session in the background.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		select {
		case <-r.done:
		default:
			return ErrAlreadyRunning
		}
	}

	cfg := r.configs()
	mode, err := r.factory(cfg, r.state)
	if err != nil {
		return fmt.Errorf("build %s mode: %w", cfg.Trading.Mode, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state.SetRunning(uuid.NewString(), cfg.Trading.Mode)

	go func(done chan struct{}) {
		defer close(done)
		defer cancel()
		r.run(ctx, mode, cfg)
	}(r.done)
	return nil
}

// Stop requests a stop at the next safe point. It does not wait.
func (r *Runner) Stop() bool {
	return r.state.RequestStop()
}

// Wait blocks until the current session ends.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Shutdown cancels the session and waits for it.
func (r *Runner) Shutdown() {
	r.state.RequestStop()
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.Wait()
}

func (r *Runner) run(ctx context.Context, mode trading.Mode, cfg *config.Config) {
	name := string(cfg.Trading.Mode)
	logger := r.log.With().Str("mode", name).Logger()

	if err := mode.Prepare(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("prepare failed")
		r.notify(ctx, notify.Event{Kind: notify.KindStopped, Mode: name, Text: "prepare failed: " + err.Error()})
		r.state.SetStopped("error: " + err.Error())
		return
	}
	r.startSession(ctx, name, mode.MarketData().Balance)
	session := r.state.Snapshot().Session
	logger = logger.With().Str("session", session).Logger()
	r.notify(ctx, notify.Event{Kind: notify.KindStarted, Mode: name, Text: session})
	logger.Info().Msg("session started")

	reason := r.loop(ctx, mode, name, logger)

	md := mode.MarketData()
	logger.Info().Str("reason", reason).Int("profit", md.Profit).Int("count", md.Count).Msg("session ended")
	r.endSession()
	r.notify(context.WithoutCancel(ctx), notify.Event{Kind: notify.KindStopped, Mode: name, Text: reason, Profit: md.Profit, Count: md.Count})
	r.state.SetStopped("stopped: " + reason)
}

func (r *Runner) loop(ctx context.Context, mode trading.Mode, name string, logger zerolog.Logger) string {
	for {
		if ctx.Err() != nil || r.state.Stopping() {
			return "stop requested"
		}
		cfg := r.configs()
		cont, err := r.cycle(ctx, mode, cfg)
		prev := r.state.cycleDone(err, mode.MarketData())

		switch {
		case trading.IsHardStop(err):
			logger.Warn().Err(err).Msg("hard stop")
			return err.Error()
		case err != nil:
			failures := prev + 1
			logger.Error().Err(err).Int("consecutive", failures).Msg("cycle failed")
			if failures == 1 || failures%errorNotifyEvery == 0 {
				r.notify(ctx, notify.Event{Kind: notify.KindError, Mode: name, Text: err.Error(), Failure: failures})
			}
		case prev > 0:
			logger.Info().Int("failures", prev).Msg("cycle recovered")
			r.notify(ctx, notify.Event{Kind: notify.KindRecovery, Mode: name, Failure: prev})
		}
		if !cont {
			if ctx.Err() != nil || r.state.Stopping() {
				return "stop requested"
			}
			return "session finished"
		}

		select {
		case <-ctx.Done():
			return "stop requested"
		case <-time.After(cfg.Trading.LoopInterval()):
		}
	}
}

// cycle runs one iteration and turns a panic into a failed cycle.
func (r *Runner) cycle(ctx context.Context, mode trading.Mode, cfg *config.Config) (cont bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			cont, err = true, fmt.Errorf("cycle panic: %v", p)
		}
	}()
	return mode.ExecuteCycle(ctx, cfg)
}

func (r *Runner) startSession(ctx context.Context, mode string, balance int) {
	if r.sessions == nil {
		return
	}
	id, err := r.sessions.StartSession(ctx, mode, balance)
	if err != nil {
		r.log.Warn().Err(err).Msg("ledger session not started")
		return
	}
	r.state.setSession(id)
}

func (r *Runner) endSession() {
	if r.sessions == nil {
		return
	}
	if err := r.sessions.EndSession(context.Background()); err != nil {
		r.log.Warn().Err(err).Msg("ledger session not closed")
	}
}

func (r *Runner) notify(ctx context.Context, ev notify.Event) {
	if err := r.notifier.Notify(ctx, ev); err != nil {
		r.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("notification failed")
	}
}

// Snapshot is State().Snapshot().
func (r *Runner) Snapshot() Snapshot { return r.state.Snapshot() }
