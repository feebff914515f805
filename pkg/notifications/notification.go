package notifications

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Notification describes what to send and through which channels.
//
// Implementations usually embed Meta (immediate) or Queueable (deferred) and
// define Via. Rendering is opt-in through ToDatabase, ToMail, ToBroadcast,
// ToWebhook or RenderFor.
type Notification interface {
	// Via returns the channel names for r. An empty result skips r.
	Via(r Recipient) []string
	// ShouldSend is a per channel veto evaluated right before delivery.
	ShouldSend(r Recipient, channel string) bool
	// ShouldQueue marks the notification for deferred delivery.
	ShouldQueue() bool
	// NotificationMeta returns identity and dispatch metadata.
	NotificationMeta() Meta
}

// Meta carries the optional identity and dispatch settings of a notification.
// Embedding it provides the default ShouldSend, ShouldQueue and
// NotificationMeta behaviour.
type Meta struct {
	// ID is assigned at dispatch time when empty.
	ID string `json:"id,omitempty"`
	// Locale overrides every other locale source.
	Locale string `json:"locale,omitempty"`
	// Queue, Connection and Delay apply to queued delivery only.
	Queue      string        `json:"queue,omitempty"`
	Connection string        `json:"connection,omitempty"`
	Delay      time.Duration `json:"delay,omitempty"`
}

// ShouldSend allows every channel.
func (m Meta) ShouldSend(Recipient, string) bool { return true }

// ShouldQueue reports false: delivery is immediate.
func (m Meta) ShouldQueue() bool { return false }

// NotificationMeta returns m.
func (m Meta) NotificationMeta() Meta { return m }

// Queueable is Meta for notifications that are delivered by a queue worker.
type Queueable struct {
	Meta
}

// ShouldQueue reports true.
func (Queueable) ShouldQueue() bool { return true }

// Typer lets a notification choose its own type tag instead of the Go type name.
type Typer interface {
	NotificationType() string
}

// TypeOf returns the type tag of n: NotificationType when implemented,
// otherwise the package qualified Go type name without pointer markers.
func TypeOf(n Notification) string {
	if t, ok := n.(Typer); ok {
		if typ := t.NotificationType(); typ != "" {
			return typ
		}
	}
	return queue.TaskNameOf(n)
}
