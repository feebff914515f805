package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// QueuedTaskName is the task name of queued notification jobs.
const QueuedTaskName = "notifications.send"

// QueuedNotification is the job payload for one (recipient, channel) pair.
type QueuedNotification struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Channel       string          `json:"channel"`
	Locale        string          `json:"locale,omitempty"`
	RecipientType string          `json:"recipient_type"`
	RecipientKey  string          `json:"recipient_key"`
	Notification  json.RawMessage `json:"notification"`
}

// Recipient returns the identity the worker must resolve.
func (q QueuedNotification) Recipient() Identity {
	return Identity{Type: q.RecipientType, Key: q.RecipientKey}
}

// enqueue creates one job per identified recipient and Via channel.
// Anonymous recipients cannot be re-resolved by a worker and are skipped.
func (d *Dispatcher) enqueue(ctx context.Context, n Notification, recipients []Recipient) error {
	meta := n.NotificationMeta()

	var (
		enq  Enqueuer
		body json.RawMessage
		typ  = TypeOf(n)
	)

	for _, r := range recipients {
		ident, ok := IdentityOf(r)
		if !ok {
			continue
		}
		channels := n.Via(r)
		if len(channels) == 0 {
			continue
		}

		if enq == nil {
			var err error
			if enq, err = d.enqueuer(meta.Connection); err != nil {
				return err
			}
			if body, err = json.Marshal(n); err != nil {
				return fmt.Errorf("encode %s: %w", typ, err)
			}
		}

		id := meta.ID
		if id == "" {
			id = d.newID()
		}
		locale := firstLocale(meta.Locale, d.locale)

		opts := []queue.EnqueueOption{queue.WithTaskName(QueuedTaskName)}
		if meta.Queue != "" {
			opts = append(opts, queue.WithQueue(meta.Queue))
		}
		if meta.Delay > 0 {
			opts = append(opts, queue.WithDelay(meta.Delay))
		}

		for _, channel := range channels {
			job := QueuedNotification{
				ID:            id,
				Type:          typ,
				Channel:       channel,
				Locale:        locale,
				RecipientType: ident.Type,
				RecipientKey:  ident.Key,
				Notification:  body,
			}
			if err := enq.Enqueue(ctx, job, opts...); err != nil {
				return fmt.Errorf("queue %s via %q for %s: %w", typ, channel, ident, err)
			}
			d.logger.LogAttrs(ctx, slog.LevelDebug, "notification queued",
				logger.NotificationID(id),
				logger.NotificationType(typ),
				logger.Channel(channel),
				logger.Recipient(ident.Type, ident.Key),
			)
		}
	}
	return nil
}

func (d *Dispatcher) enqueuer(connection string) (Enqueuer, error) {
	if connection == "" {
		connection = d.defaultConnection
	}
	enq, ok := d.connections[connection]
	if !ok || enq == nil {
		return nil, &ConfigurationError{Connection: connection, Err: ErrUnknownConnection}
	}
	return enq, nil
}

// DeliverQueued delivers a dequeued job on its single channel with the
// job's ID. The job locale wins over the recipient's preference.
func (d *Dispatcher) DeliverQueued(ctx context.Context, job QueuedNotification, n Notification, r Recipient) error {
	locale := job.Locale
	if locale == "" {
		locale = d.preferredLocale(n.NotificationMeta(), r)
	}

	var errs []error
	if err := d.deliverToRecipient(ctx, n, r, []string{job.Channel}, job.ID, locale, &errs); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// RecipientResolver loads a recipient by identity on the worker side.
// It returns ErrRecipientNotFound when the recipient no longer exists.
type RecipientResolver interface {
	ResolveRecipient(ctx context.Context, id Identity) (Recipient, error)
}

// RecipientResolverFunc adapts a function to RecipientResolver.
type RecipientResolverFunc func(ctx context.Context, id Identity) (Recipient, error)

// ResolveRecipient calls f.
func (f RecipientResolverFunc) ResolveRecipient(ctx context.Context, id Identity) (Recipient, error) {
	return f(ctx, id)
}

// TypeRegistry decodes queued notifications by type tag.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]func(json.RawMessage) (Notification, error)
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]func(json.RawMessage) (Notification, error))}
}

// Register binds a decoder to a type tag.
func (t *TypeRegistry) Register(typ string, decode func(json.RawMessage) (Notification, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.types[typ] = decode
}

// Decode rebuilds the notification tagged typ from its JSON encoding.
func (t *TypeRegistry) Decode(typ string, raw json.RawMessage) (Notification, error) {
	t.mu.RLock()
	decode, ok := t.types[typ]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNotificationType, typ)
	}
	return decode(raw)
}

// RegisterType registers T under TypeOf(T). T may be a struct or a pointer
// to a struct.
func RegisterType[T Notification](t *TypeRegistry) {
	t.Register(TypeOf(zeroNotification[T]()), func(raw json.RawMessage) (Notification, error) {
		v := zeroNotification[T]()
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %T: %w", v, err)
		}
		return v, nil
	})
}

// zeroNotification returns a usable zero T; pointer types get a fresh value
// so that methods with value receivers do not dereference nil.
func zeroNotification[T Notification]() T {
	var zero T
	if rt := reflect.TypeFor[T](); rt.Kind() == reflect.Pointer {
		return reflect.New(rt.Elem()).Interface().(T)
	}
	return zero
}

// NewQueueHandler returns the worker handler for queued notification jobs.
// Jobs whose recipient is gone or whose channel cannot be resolved are
// dropped; other failures are returned so the queue retries them.
func NewQueueHandler(d *Dispatcher, resolver RecipientResolver, types *TypeRegistry) queue.Handler {
	return queue.NewNamedTaskHandler(QueuedTaskName, func(ctx context.Context, job QueuedNotification) error {
		n, err := types.Decode(job.Type, job.Notification)
		if err != nil {
			return err
		}

		r, err := resolver.ResolveRecipient(ctx, job.Recipient())
		if err != nil {
			if errors.Is(err, ErrRecipientNotFound) {
				d.logger.LogAttrs(ctx, slog.LevelWarn, "queued notification dropped",
					logger.NotificationID(job.ID),
					logger.NotificationType(job.Type),
					logger.Channel(job.Channel),
					logger.Recipient(job.RecipientType, job.RecipientKey),
					logger.Error(err),
				)
				return nil
			}
			return fmt.Errorf("resolve %s: %w", job.Recipient(), err)
		}

		if err := d.DeliverQueued(ctx, job, n, r); err != nil {
			if IsConfigurationError(err) {
				// Retrying cannot fix a channel missing from this worker's registry.
				d.logger.LogAttrs(ctx, slog.LevelError, "queued notification dropped",
					logger.NotificationID(job.ID),
					logger.NotificationType(job.Type),
					logger.Channel(job.Channel),
					logger.Recipient(job.RecipientType, job.RecipientKey),
					logger.Error(err),
				)
				return nil
			}
			return err
		}
		return nil
	})
}
