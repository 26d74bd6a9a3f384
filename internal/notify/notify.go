// Package notify pushes session events to the operator.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind classifies an Event.
type Kind string

const (
	KindStarted  Kind = "started"
	KindStatus   Kind = "status"
	KindError    Kind = "error"
	KindRecovery Kind = "recovery"
	KindStopped  Kind = "stopped"
)

// Event is one notification.
type Event struct {
	Kind    Kind
	Mode    string
	Text    string
	Profit  int
	Count   int
	Failure int // consecutive failed cycles for error and recovery events
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Log writes events to the log.
type Log struct {
	log zerolog.Logger
}

func NewLog() *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(_ context.Context, ev Event) error {
	e := l.log.Info()
	if ev.Kind == KindError {
		e = l.log.Warn()
	}
	e.Str("kind", string(ev.Kind)).Str("mode", ev.Mode).Int("profit", ev.Profit).Int("count", ev.Count).
		Int("failures", ev.Failure).Msg(ev.Text)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Format renders an event as plain text.
func Format(ev Event) string {
	switch ev.Kind {
	case KindStarted:
		return fmt.Sprintf("▶️ %s session started: %s", ev.Mode, ev.Text)
	case KindError:
		return fmt.Sprintf("⚠️ %s cycle failed (%d in a row): %s", ev.Mode, ev.Failure, ev.Text)
	case KindRecovery:
		return fmt.Sprintf("✅ %s recovered after %d failed cycle(s)", ev.Mode, ev.Failure)
	case KindStopped:
		return fmt.Sprintf("⏹ %s session stopped: %s\nprofit %d, sold %d", ev.Mode, ev.Text, ev.Profit, ev.Count)
	default:
		return fmt.Sprintf("%s: %s (profit %d, sold %d)", ev.Mode, ev.Text, ev.Profit, ev.Count)
	}
}
