package notifications

import (
	"context"
	"sync"
)

// Lifecycle event names.
const (
	EventSending = "sending"
	EventSent    = "sent"
	EventFailed  = "failed"
)

// Event describes one (recipient, channel) delivery attempt.
type Event struct {
	Name      string
	Recipient Recipient
	Message   Message
	Channel   string
	// Response is set on sent events.
	Response any
	// Err is set on failed events.
	Err error

	stopped bool
}

// Stop vetoes the delivery. It only has an effect on sending events.
func (e *Event) Stop() { e.stopped = true }

// Stopped reports whether a listener called Stop.
func (e *Event) Stopped() bool { return e.stopped }

// Listener observes lifecycle events. Listeners run synchronously on the
// dispatching goroutine.
type Listener func(ctx context.Context, e *Event)

// Events is a synchronous lifecycle event bus. The zero value is not usable;
// a nil *Events ignores every emit.
type Events struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

// NewEvents creates an empty bus.
func NewEvents() *Events {
	return &Events{listeners: make(map[string][]Listener)}
}

// On subscribes l to events called name.
func (b *Events) On(name string, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], l)
}

// OnAll subscribes l to every lifecycle event.
func (b *Events) OnAll(l Listener) {
	for _, name := range []string{EventSending, EventSent, EventFailed} {
		b.On(name, l)
	}
}

// Emit calls the listeners of e.Name in registration order.
func (b *Events) Emit(ctx context.Context, e *Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	listeners := b.listeners[e.Name]
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, e)
	}
}
