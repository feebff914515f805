package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/i18n"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// DefaultConnection is the queue connection used when Meta.Connection is empty.
const DefaultConnection = "default"

// Sender dispatches notifications. Dispatcher is the real implementation;
// notificationtest.Sender records instead of delivering.
type Sender interface {
	// Send queues the notification when it is queueable and delivers it
	// immediately otherwise.
	Send(ctx context.Context, n Notification, to ...Recipient) error
	// SendNow delivers immediately even when the notification is queueable.
	SendNow(ctx context.Context, n Notification, to ...Recipient) error
	// SendVia delivers immediately through channels instead of Via. An empty
	// list falls back to Via.
	SendVia(ctx context.Context, n Notification, channels []string, to ...Recipient) error
}

// Dispatcher resolves channels, delivers per recipient and channel, and
// emits lifecycle events. Calls are sequential: channels run in Via order
// on the caller's goroutine.
type Dispatcher struct {
	registry          *Registry
	events            *Events
	connections       map[string]Enqueuer
	defaultConnection string
	locale            string
	policy            FailurePolicy
	newID             func() string
	logger            *slog.Logger
}

var _ Sender = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher resolving channels from registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:          registry,
		connections:       make(map[string]Enqueuer),
		defaultConnection: DefaultConnection,
		policy:            AbortOnFailure,
		newID:             func() string { return uuid.New().String() },
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With(logger.Component("notifications.dispatcher"))
	return d
}

// ForLocale returns a copy of d with the dispatcher level locale set.
func (d *Dispatcher) ForLocale(locale string) *Dispatcher {
	cp := *d
	cp.locale = locale
	return &cp
}

// Events returns the lifecycle event bus, which may be nil.
func (d *Dispatcher) Events() *Events {
	return d.events
}

// Registry returns the channel registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) Send(ctx context.Context, n Notification, to ...Recipient) error {
	recipients := normalize(to)
	if n.ShouldQueue() {
		return d.enqueue(ctx, n, recipients)
	}
	return d.deliverAll(ctx, n, nil, recipients)
}

func (d *Dispatcher) SendNow(ctx context.Context, n Notification, to ...Recipient) error {
	return d.deliverAll(ctx, n, nil, normalize(to))
}

func (d *Dispatcher) SendVia(ctx context.Context, n Notification, channels []string, to ...Recipient) error {
	return d.deliverAll(ctx, n, channels, normalize(to))
}

// normalize drops nil recipients and keeps the caller's order.
func normalize(to []Recipient) []Recipient {
	out := make([]Recipient, 0, len(to))
	for _, r := range to {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (d *Dispatcher) deliverAll(ctx context.Context, n Notification, override []string, recipients []Recipient) error {
	var errs []error
	for _, r := range recipients {
		channels := override
		if len(channels) == 0 {
			channels = n.Via(r)
		}
		if len(channels) == 0 {
			continue
		}

		meta := n.NotificationMeta()
		locale := d.preferredLocale(meta, r)
		if err := d.deliverToRecipient(ctx, n, r, channels, meta.ID, locale, &errs); err != nil {
			errs = append(errs, err)
			return errors.Join(errs...)
		}
	}
	return errors.Join(errs...)
}

// preferredLocale applies notification > dispatcher > recipient precedence.
// A source whose locale does not parse is passed over.
func (d *Dispatcher) preferredLocale(meta Meta, r Recipient) string {
	var preferred string
	if lp, ok := r.(LocalePreferrer); ok {
		preferred = lp.PreferredLocale()
	}
	return firstLocale(meta.Locale, d.locale, preferred)
}

// firstLocale returns the canonical form of the first locale that parses.
func firstLocale(locales ...string) string {
	for _, locale := range locales {
		if canonical, ok := i18n.Canonicalize(locale); ok {
			return canonical
		}
	}
	return ""
}

// deliverToRecipient runs the channel loop for one recipient under locale.
// The locale lives in a derived context only, so the caller's locale is in
// force again once this returns on every path. It returns a non-nil error
// only when the batch must abort; tolerated faults are appended to errs.
func (d *Dispatcher) deliverToRecipient(ctx context.Context, n Notification, r Recipient, channels []string, id, locale string, errs *[]error) error {
	if locale != "" {
		ctx = i18n.SetLocale(ctx, locale)
	}
	active, _ := i18n.LocaleFromContext(ctx)

	presetID := id != ""
	if !presetID {
		id = d.newID()
	}
	typ := TypeOf(n)

	for _, channel := range channels {
		msg := Message{
			ID:           id,
			Type:         typ,
			Channel:      channel,
			Locale:       active,
			Notification: n,
		}

		resp, err := d.deliver(ctx, r, msg)
		if err != nil {
			if IsConfigurationError(err) || d.policy == ContinueOnFailure {
				*errs = append(*errs, err)
				continue
			}
			return err
		}

		if presetID || d.registry.DriverOf(channel) != DriverDatabase {
			continue
		}
		if ided, ok := resp.(Identifiable); ok {
			if stored := ided.NotificationID(); stored != "" {
				id = stored
			}
		}
	}
	return nil
}

// deliver performs one (recipient, channel) attempt. A nil response with a
// nil error means the attempt was vetoed or the channel had nothing to do.
func (d *Dispatcher) deliver(ctx context.Context, r Recipient, msg Message) (any, error) {
	ident, _ := IdentityOf(r)
	attrs := []slog.Attr{
		logger.NotificationID(msg.ID),
		logger.NotificationType(msg.Type),
		logger.Channel(msg.Channel),
		logger.Recipient(ident.Type, ident.Key),
		logger.Locale(msg.Locale),
	}

	sending := &Event{Name: EventSending, Recipient: r, Message: msg, Channel: msg.Channel}
	d.events.Emit(ctx, sending)
	if sending.Stopped() || !msg.Notification.ShouldSend(r, msg.Channel) {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "notification skipped", attrs...)
		return nil, nil
	}

	ch, err := d.registry.Get(msg.Channel)
	if err != nil {
		d.fail(ctx, r, msg, err, attrs)
		return nil, err
	}

	start := time.Now()
	resp, err := ch.Send(ctx, r, msg)
	attrs = append(attrs, logger.Duration(time.Since(start)))
	if err != nil {
		d.fail(ctx, r, msg, err, attrs)
		return nil, &DeliveryError{Channel: msg.Channel, NotificationID: msg.ID, Recipient: ident, Err: err}
	}

	d.events.Emit(ctx, &Event{Name: EventSent, Recipient: r, Message: msg, Channel: msg.Channel, Response: resp})
	d.logger.LogAttrs(ctx, slog.LevelDebug, "notification sent", attrs...)
	return resp, nil
}

func (d *Dispatcher) fail(ctx context.Context, r Recipient, msg Message, err error, attrs []slog.Attr) {
	d.events.Emit(ctx, &Event{Name: EventFailed, Recipient: r, Message: msg, Channel: msg.Channel, Err: err})
	d.logger.LogAttrs(ctx, slog.LevelError, "notification failed", append(attrs, logger.Error(err))...)
}
