package notificationtest

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/i18n"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Sent is one notification captured for one recipient.
type Sent struct {
	Recipient    notifications.Recipient
	Identity     notifications.Identity
	OnDemand     bool
	Notification notifications.Notification
	Type         string
	Channels     []string
	Queued       bool
	Locale       string
	// Data is the rendered database payload, nil when the notification has
	// none or rendering failed.
	Data   map[string]any
	SentAt time.Time
}

// HasChannel reports whether the notification was routed to channel.
func (s Sent) HasChannel(channel string) bool {
	return slices.Contains(s.Channels, channel)
}

// Sender is a notifications.Sender that records dispatches instead of
// delivering them. It is safe for concurrent use.
type Sender struct {
	mu     sync.RWMutex
	sent   []Sent
	locale string
	err    error
	now    func() time.Time
}

var _ notifications.Sender = (*Sender)(nil)

// Option configures a Sender.
type Option func(*Sender)

// WithLocale sets the locale recorded when neither the notification nor the
// recipient names one.
func WithLocale(locale string) Option {
	return func(s *Sender) {
		s.locale = locale
	}
}

// WithError makes every send record the notification and then return err.
func WithError(err error) Option {
	return func(s *Sender) {
		s.err = err
	}
}

// NewSender creates an empty recording sender.
func NewSender(opts ...Option) *Sender {
	s := &Sender{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send records n for every recipient, flagged queued when n asks to be.
func (s *Sender) Send(ctx context.Context, n notifications.Notification, to ...notifications.Recipient) error {
	return s.record(ctx, n, nil, n.ShouldQueue(), to)
}

// SendNow records n for every recipient as delivered immediately.
func (s *Sender) SendNow(ctx context.Context, n notifications.Notification, to ...notifications.Recipient) error {
	return s.record(ctx, n, nil, false, to)
}

// SendVia records n for every recipient on channels.
func (s *Sender) SendVia(ctx context.Context, n notifications.Notification, channels []string, to ...notifications.Recipient) error {
	return s.record(ctx, n, channels, false, to)
}

func (s *Sender) record(ctx context.Context, n notifications.Notification, override []string, queued bool, to []notifications.Recipient) error {
	typ := notifications.TypeOf(n)
	meta := n.NotificationMeta()

	var captured []Sent
	for _, r := range to {
		if r == nil {
			continue
		}
		channels := override
		if len(channels) == 0 {
			channels = n.Via(r)
		}
		if len(channels) == 0 {
			continue
		}

		locale := cmp.Or(meta.Locale, s.locale)
		if locale == "" {
			if p, ok := r.(notifications.LocalePreferrer); ok {
				locale = p.PreferredLocale()
			}
		}
		if c, ok := i18n.Canonicalize(locale); ok {
			locale = c
		}

		id, identified := notifications.IdentityOf(r)
		entry := Sent{
			Recipient:    r,
			Identity:     id,
			OnDemand:     !identified,
			Notification: n,
			Type:         typ,
			Channels:     slices.Clone(channels),
			Queued:       queued,
			Locale:       locale,
			SentAt:       s.now(),
		}
		if data, err := notifications.DatabaseData(i18n.SetLocale(ctx, locale), n, r); err == nil && len(data) > 0 {
			entry.Data = data
		}
		captured = append(captured, entry)
	}

	s.mu.Lock()
	s.sent = append(s.sent, captured...)
	s.mu.Unlock()
	return s.err
}

// Notifications returns everything recorded so far, oldest first.
func (s *Sender) Notifications() []Sent {
	return s.filter(func(Sent) bool { return true })
}

// For returns notifications of type typ sent to r. An empty typ matches
// every type.
func (s *Sender) For(r notifications.Recipient, typ string) []Sent {
	return s.filter(func(e Sent) bool {
		return sameRecipient(e, r) && (typ == "" || e.Type == typ)
	})
}

// ByChannel returns notifications routed to channel.
func (s *Sender) ByChannel(channel string) []Sent {
	return s.filter(func(e Sent) bool { return e.HasChannel(channel) })
}

// ByType returns notifications of type typ.
func (s *Sender) ByType(typ string) []Sent {
	return s.filter(func(e Sent) bool { return e.Type == typ })
}

// OnDemand returns notifications sent to anonymous recipients.
func (s *Sender) OnDemand() []Sent {
	return s.filter(func(e Sent) bool { return e.OnDemand })
}

// Count returns the number of recorded notifications.
func (s *Sender) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sent)
}

// Reset forgets everything recorded.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

func (s *Sender) filter(keep func(Sent) bool) []Sent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Sent
	for _, e := range s.sent {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func sameRecipient(e Sent, r notifications.Recipient) bool {
	if id, ok := notifications.IdentityOf(r); ok {
		return !e.OnDemand && e.Identity == id
	}
	return e.OnDemand && assert.ObjectsAreEqual(e.Recipient, r)
}
