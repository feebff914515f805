package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// FailurePolicy decides what happens after a channel fault.
type FailurePolicy int

const (
	// AbortOnFailure stops the dispatch call at the first channel fault.
	AbortOnFailure FailurePolicy = iota
	// ContinueOnFailure keeps delivering and returns every fault joined.
	ContinueOnFailure
)

func (p FailurePolicy) String() string {
	if p == ContinueOnFailure {
		return "continue"
	}
	return "abort"
}

// ParseFailurePolicy maps "abort" and "continue" to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "abort":
		return AbortOnFailure, nil
	case "continue":
		return ContinueOnFailure, nil
	default:
		return AbortOnFailure, fmt.Errorf("%w: %q", ErrInvalidFailurePolicy, s)
	}
}

// Enqueuer is the queue collaborator used for queued notifications.
// *queue.Enqueuer satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithEvents sets the lifecycle event bus.
func WithEvents(events *Events) DispatcherOption {
	return func(d *Dispatcher) {
		d.events = events
	}
}

// WithLocale sets the dispatcher level locale. Notification locales take
// precedence over it and recipient preferences yield to it.
func WithLocale(locale string) DispatcherOption {
	return func(d *Dispatcher) {
		d.locale = locale
	}
}

// WithFailurePolicy sets the reaction to channel faults.
func WithFailurePolicy(p FailurePolicy) DispatcherOption {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithEnqueuer sets the enqueuer of the default queue connection.
func WithEnqueuer(e Enqueuer) DispatcherOption {
	return func(d *Dispatcher) {
		d.connections[d.defaultConnection] = e
	}
}

// WithConnection registers an enqueuer under a connection name selected by
// Meta.Connection.
func WithConnection(name string, e Enqueuer) DispatcherOption {
	return func(d *Dispatcher) {
		d.connections[name] = e
	}
}

// WithDefaultConnection renames the connection used when Meta.Connection is
// empty. Apply it before WithEnqueuer.
func WithDefaultConnection(name string) DispatcherOption {
	return func(d *Dispatcher) {
		if name != "" {
			d.defaultConnection = name
		}
	}
}

// WithIDGenerator replaces the notification ID generator.
func WithIDGenerator(fn func() string) DispatcherOption {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// WithDispatcherLogger sets the logger for the Dispatcher.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
