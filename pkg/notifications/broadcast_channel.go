package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
)

// Broadcast is the payload published by the broadcast channel.
type Broadcast struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Locale    string         `json:"locale,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// TopicFor returns the default topic of an identified recipient: "type.key".
func TopicFor(id Identity) string {
	return id.Type + "." + id.Key
}

// BroadcastChannel publishes notifications to in-process subscribers, for
// example server-sent event streams.
type BroadcastChannel struct {
	broadcaster broadcast.Broadcaster[Broadcast]
	now         func() time.Time
}

// NewBroadcastChannel creates a channel publishing to b.
func NewBroadcastChannel(b broadcast.Broadcaster[Broadcast]) *BroadcastChannel {
	return &BroadcastChannel{broadcaster: b, now: time.Now}
}

// Send publishes to the recipient's route for the channel, falling back to
// TopicFor. Anonymous recipients without a route are skipped.
func (c *BroadcastChannel) Send(ctx context.Context, r Recipient, msg Message) (any, error) {
	topic, ok := c.topic(r, msg.Channel)
	if !ok {
		return nil, nil
	}

	data, err := BroadcastData(ctx, msg.Notification, r)
	if err != nil {
		return nil, fmt.Errorf("render broadcast payload: %w", err)
	}

	payload := Broadcast{
		ID:        msg.ID,
		Type:      msg.Type,
		Locale:    msg.Locale,
		Data:      data,
		CreatedAt: c.now(),
	}
	if err := c.broadcaster.Broadcast(ctx, broadcast.Message[Broadcast]{Topic: topic, Data: payload}); err != nil {
		return nil, err
	}
	return payload, nil
}

// Subscribe follows topic until ctx is done or the subscriber is closed.
func (c *BroadcastChannel) Subscribe(ctx context.Context, topic string) broadcast.Subscriber[Broadcast] {
	return c.broadcaster.Subscribe(ctx, topic)
}

func (c *BroadcastChannel) topic(r Recipient, channel string) (string, bool) {
	if t, ok := RouteFor(r, channel); ok {
		return t, true
	}
	if t, ok := RouteFor(r, DriverBroadcast); ok {
		return t, true
	}
	if id, ok := IdentityOf(r); ok {
		return TopicFor(id), true
	}
	return "", false
}

// BroadcastDriver returns a Factory for broadcast channels sharing b, so
// every channel name configured with this driver feeds the same subscribers.
func BroadcastDriver(b broadcast.Broadcaster[Broadcast]) Factory {
	return func(string, ChannelOptions) (Channel, error) {
		if b == nil {
			return nil, fmt.Errorf("%w: broadcaster", ErrNilDependency)
		}
		return NewBroadcastChannel(b), nil
	}
}
