package notificationtest

import (
	"context"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Recorder captures the lifecycle events of a dispatcher.
type Recorder struct {
	mu     sync.Mutex
	events []*notifications.Event
}

// NewRecorder creates a Recorder listening to every event on bus.
func NewRecorder(bus *notifications.Events) *Recorder {
	r := &Recorder{}
	bus.OnAll(r.listen)
	return r
}

func (r *Recorder) listen(_ context.Context, e *notifications.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the captured events in emission order.
func (r *Recorder) Events() []*notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*notifications.Event(nil), r.events...)
}

// Named returns the captured events called name.
func (r *Recorder) Named(name string) []*notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notifications.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Trace returns the captured events as "name:channel" strings.
func (r *Recorder) Trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name+":"+e.Channel)
	}
	return out
}

// Reset forgets the captured events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
