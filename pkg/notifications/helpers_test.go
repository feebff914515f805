package notifications_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/i18n"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type user struct {
	ID      string
	Email   string
	Hook    string
	Lang    string
	Channel string // broadcast topic override
}

func (u user) NotificationIdentity() (notifications.Identity, bool) {
	return notifications.Identity{Type: "users", Key: u.ID}, true
}

func (u user) RouteNotificationFor(channel string) (string, bool) {
	switch channel {
	case "mail":
		return u.Email, u.Email != ""
	case "webhook":
		return u.Hook, u.Hook != ""
	case "broadcast":
		return u.Channel, u.Channel != ""
	}
	return "", false
}

func (u user) PreferredLocale() string { return u.Lang }

type greeting struct {
	notifications.Meta
	Channels []string        `json:"channels"`
	Title    string          `json:"title"`
	Vetoed   map[string]bool `json:"-"`
}

func (g greeting) Via(notifications.Recipient) []string { return g.Channels }

func (g greeting) ShouldSend(_ notifications.Recipient, channel string) bool {
	return !g.Vetoed[channel]
}

func (g greeting) ToDatabase(context.Context, notifications.Recipient) (map[string]any, error) {
	return map[string]any{"title": g.Title}, nil
}

func (g greeting) ToBroadcast(ctx context.Context, _ notifications.Recipient) (map[string]any, error) {
	return map[string]any{"title": g.Title, "locale": i18n.GetLocale(ctx)}, nil
}

func (g greeting) ToWebhook(context.Context, notifications.Recipient) (any, error) {
	return map[string]string{"title": g.Title}, nil
}

func (g greeting) ToMail(context.Context, notifications.Recipient) (*notifications.MailMessage, error) {
	m := &notifications.MailMessage{Subject: g.Title, SubjectKey: "mail.greeting.subject", Greeting: "Hello"}
	return m.Line("Welcome aboard.").Action("Open", "https://example.com/app"), nil
}

type reminder struct {
	notifications.Queueable
	Channels []string `json:"channels"`
	Title    string   `json:"title"`
}

func (r reminder) Via(notifications.Recipient) []string { return r.Channels }

func (reminder) NotificationType() string { return "reminder" }

// call is one invocation observed by a recordingChannel.
type call struct {
	Recipient notifications.Recipient
	Message   notifications.Message
	Locale    string
}

type recordingChannel struct {
	mu    sync.Mutex
	calls []call
	resp  any
	err   error
}

func (c *recordingChannel) Send(ctx context.Context, r notifications.Recipient, msg notifications.Message) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	locale, _ := i18n.LocaleFromContext(ctx)
	c.calls = append(c.calls, call{Recipient: r, Message: msg, Locale: locale})
	return c.resp, c.err
}

func (c *recordingChannel) Calls() []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]call(nil), c.calls...)
}

// eventLog captures lifecycle events as "name:channel" strings.
type eventLog struct {
	mu     sync.Mutex
	events []*notifications.Event
}

func (l *eventLog) listen(_ context.Context, e *notifications.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Name+":"+e.Channel)
	}
	return out
}

func (l *eventLog) byName(name string) []*notifications.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*notifications.Event
	for _, e := range l.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func newEvents(log *eventLog) *notifications.Events {
	events := notifications.NewEvents()
	events.OnAll(log.listen)
	return events
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
