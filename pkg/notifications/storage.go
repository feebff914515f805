package notifications

import (
	"context"
	"time"
)

// Record is a notification persisted by the database channel.
type Record struct {
	ID             string         `json:"id" bson:"_id"`
	NotifiableType string         `json:"notifiable_type" bson:"notifiable_type"`
	NotifiableKey  string         `json:"notifiable_key" bson:"notifiable_key"`
	Type           string         `json:"type" bson:"type"`
	Data           map[string]any `json:"data" bson:"data"`
	ReadAt         *time.Time     `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
}

// NotificationID exposes the stored ID so later channels adopt it.
func (r *Record) NotificationID() string { return r.ID }

// IsRead reports whether the record has been marked read.
func (r Record) IsRead() bool { return r.ReadAt != nil }

// Owner returns the identity of the recipient owning the record.
func (r Record) Owner() Identity {
	return Identity{Type: r.NotifiableType, Key: r.NotifiableKey}
}

// Storage persists records produced by the database channel.
type Storage interface {
	// Create stores rec and returns it as stored. Implementations assign an
	// ID when rec.ID is empty and may replace it with their own.
	Create(ctx context.Context, rec Record) (*Record, error)
	// Get returns the record id or ErrRecordNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// MarkRead marks id read. It reports false when the record does not
	// exist. Already read records keep their original ReadAt.
	MarkRead(ctx context.Context, id string) (bool, error)
	// MarkAllRead marks every unread record of the owner read and returns
	// how many changed.
	MarkAllRead(ctx context.Context, notifiableType, notifiableKey string) (int, error)
	// FindUnread returns the owner's unread records, newest first.
	FindUnread(ctx context.Context, notifiableType, notifiableKey string) ([]Record, error)
	// FindRead returns the owner's read records, newest first.
	FindRead(ctx context.Context, notifiableType, notifiableKey string) ([]Record, error)
	// CountUnread returns the owner's unread count.
	CountUnread(ctx context.Context, notifiableType, notifiableKey string) (int, error)
	// DeleteFor removes every record of the owner, for cascading deletes.
	DeleteFor(ctx context.Context, notifiableType, notifiableKey string) (int, error)
}
