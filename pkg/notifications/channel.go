package notifications

import "context"

// Built-in driver names.
const (
	DriverDatabase  = "database"
	DriverMail      = "mail"
	DriverBroadcast = "broadcast"
	DriverWebhook   = "webhook"
)

// Message is the per channel delivery value handed to a Channel. A fresh
// Message is built for every channel attempt.
type Message struct {
	ID           string
	Type         string
	Channel      string
	Locale       string
	Notification Notification
}

// Channel delivers a message to a recipient and returns a channel specific
// response.
type Channel interface {
	Send(ctx context.Context, r Recipient, msg Message) (any, error)
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, r Recipient, msg Message) (any, error)

// Send calls f.
func (f ChannelFunc) Send(ctx context.Context, r Recipient, msg Message) (any, error) {
	return f(ctx, r, msg)
}

// Identifiable responses carry an ID assigned by a store, such as the
// primary key of a *Record. Later channels for the same recipient adopt it
// only when the responding channel runs on the database driver.
type Identifiable interface {
	NotificationID() string
}
