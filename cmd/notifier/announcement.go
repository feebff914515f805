package main

import (
	"context"

	"github.com/dmitrymomot/notifykit/pkg/cache"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const subscriberType = "users"

// announcement is the notification accepted by the ingress endpoint.
type announcement struct {
	notifications.Meta
	Title    string              `json:"title"`
	Body     string              `json:"body"`
	URL      string              `json:"url,omitempty"`
	Level    notifications.Level `json:"level,omitempty"`
	Channels []string            `json:"channels"`
	Queued   bool                `json:"queued,omitempty"`
}

func (announcement) NotificationType() string { return "announcement" }

func (a announcement) Via(notifications.Recipient) []string { return a.Channels }

func (a announcement) ShouldQueue() bool { return a.Queued }

func (a announcement) ToDatabase(context.Context, notifications.Recipient) (map[string]any, error) {
	msg := notifications.NewDatabaseMessage(a.Title, a.Body)
	if a.Level != "" {
		msg.WithLevel(a.Level)
	}
	if a.URL != "" {
		msg.WithAction(notifications.Action{Name: "open", Label: "Open", URL: a.URL})
	}
	return msg.ToMap(), nil
}

func (a announcement) ToBroadcast(ctx context.Context, r notifications.Recipient) (map[string]any, error) {
	return a.ToDatabase(ctx, r)
}

func (a announcement) ToMail(context.Context, notifications.Recipient) (*notifications.MailMessage, error) {
	m := &notifications.MailMessage{Subject: a.Title}
	m.Line(a.Body)
	if a.URL != "" {
		m.Action("Open", a.URL)
	}
	return m, nil
}

func (a announcement) ToWebhook(context.Context, notifications.Recipient) (any, error) {
	return map[string]any{
		"title": a.Title,
		"body":  a.Body,
		"url":   a.URL,
		"level": a.Level,
	}, nil
}

// subscriber is a recipient known to the notifier.
type subscriber struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Webhook string `json:"webhook,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

func (s subscriber) NotificationIdentity() (notifications.Identity, bool) {
	return notifications.Identity{Type: subscriberType, Key: s.ID}, true
}

func (s subscriber) RouteNotificationFor(channel string) (string, bool) {
	switch channel {
	case notifications.DriverMail:
		return s.Email, s.Email != ""
	case notifications.DriverWebhook:
		return s.Webhook, s.Webhook != ""
	}
	return "", false
}

func (s subscriber) PreferredLocale() string { return s.Locale }

// directory remembers the subscribers seen by the ingress so queue workers
// can restore their routes. Evicted subscribers are resolved as bare
// identities, which still reach the database and broadcast channels.
type directory struct {
	entries *cache.LRUCache[string, subscriber]
}

func newDirectory(capacity int) *directory {
	return &directory{entries: cache.NewLRUCache[string, subscriber](max(capacity, 1))}
}

func (d *directory) remember(s subscriber) {
	d.entries.Put(s.ID, s)
}

func (d *directory) ResolveRecipient(_ context.Context, id notifications.Identity) (notifications.Recipient, error) {
	if id.Type != subscriberType || id.Key == "" {
		return nil, notifications.ErrRecipientNotFound
	}
	if s, ok := d.entries.Get(id.Key); ok {
		return s, nil
	}
	return id, nil
}
