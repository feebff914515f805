package notifications

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Manager is the recipient-facing facade: it sends through a Sender and
// reads the feed back from a Storage.
type Manager struct {
	sender  Sender
	storage Storage
	logger  *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager. storage may be nil when no feed is kept.
func NewManager(sender Sender, storage Storage, opts ...ManagerOption) *Manager {
	m := &Manager{
		sender:  sender,
		storage: storage,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Notify sends n to r, queueing it when n is queueable.
func (m *Manager) Notify(ctx context.Context, r Recipient, n Notification) error {
	return m.sender.Send(ctx, n, r)
}

// NotifyNow delivers n to r immediately.
func (m *Manager) NotifyNow(ctx context.Context, r Recipient, n Notification) error {
	return m.sender.SendNow(ctx, n, r)
}

// NotifyVia delivers n to r immediately through channels.
func (m *Manager) NotifyVia(ctx context.Context, r Recipient, n Notification, channels ...string) error {
	return m.sender.SendVia(ctx, n, channels, r)
}

// Notification returns a stored record.
func (m *Manager) Notification(ctx context.Context, id string) (*Record, error) {
	if err := m.requireStorage(); err != nil {
		return nil, err
	}
	return m.storage.Get(ctx, id)
}

// MarkAsRead marks a stored record read.
func (m *Manager) MarkAsRead(ctx context.Context, id string) (bool, error) {
	if err := m.requireStorage(); err != nil {
		return false, err
	}
	return m.storage.MarkRead(ctx, id)
}

// MarkAllAsRead marks every unread record of r read.
func (m *Manager) MarkAllAsRead(ctx context.Context, r Recipient) (int, error) {
	owner, err := m.owner(r)
	if err != nil {
		return 0, err
	}
	n, err := m.storage.MarkAllRead(ctx, owner.Type, owner.Key)
	if err != nil {
		return 0, err
	}
	m.logger.LogAttrs(ctx, slog.LevelDebug, "notifications marked read",
		logger.Recipient(owner.Type, owner.Key),
		slog.Int("count", n),
	)
	return n, nil
}

// Unread returns the unread records of r, newest first.
func (m *Manager) Unread(ctx context.Context, r Recipient) ([]Record, error) {
	owner, err := m.owner(r)
	if err != nil {
		return nil, err
	}
	return m.storage.FindUnread(ctx, owner.Type, owner.Key)
}

// Read returns the read records of r, newest first.
func (m *Manager) Read(ctx context.Context, r Recipient) ([]Record, error) {
	owner, err := m.owner(r)
	if err != nil {
		return nil, err
	}
	return m.storage.FindRead(ctx, owner.Type, owner.Key)
}

// CountUnread returns the unread count of r.
func (m *Manager) CountUnread(ctx context.Context, r Recipient) (int, error) {
	owner, err := m.owner(r)
	if err != nil {
		return 0, err
	}
	return m.storage.CountUnread(ctx, owner.Type, owner.Key)
}

// Forget deletes every record of r. Call it when r itself is deleted.
func (m *Manager) Forget(ctx context.Context, r Recipient) (int, error) {
	owner, err := m.owner(r)
	if err != nil {
		return 0, err
	}
	return m.storage.DeleteFor(ctx, owner.Type, owner.Key)
}

// Sender returns the underlying sender.
func (m *Manager) Sender() Sender {
	return m.sender
}

// Storage returns the underlying storage.
func (m *Manager) Storage() Storage {
	return m.storage
}

func (m *Manager) owner(r Recipient) (Identity, error) {
	if err := m.requireStorage(); err != nil {
		return Identity{}, err
	}
	id, ok := IdentityOf(r)
	if !ok {
		return Identity{}, ErrAnonymousRecipient
	}
	return id, nil
}

func (m *Manager) requireStorage() error {
	if m.storage == nil {
		return ErrNilDependency
	}
	return nil
}
