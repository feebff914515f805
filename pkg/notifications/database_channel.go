package notifications

import (
	"context"
	"fmt"
	"time"
)

// DatabaseChannel persists notifications through a Storage. It ignores
// anonymous recipients.
type DatabaseChannel struct {
	storage Storage
	now     func() time.Time
}

// NewDatabaseChannel creates a channel writing to storage.
func NewDatabaseChannel(storage Storage) *DatabaseChannel {
	return &DatabaseChannel{storage: storage, now: time.Now}
}

// Send stores a record built from ToDatabase and returns the stored
// *Record. The record's ID may differ from msg.ID when the storage assigns
// its own keys.
func (c *DatabaseChannel) Send(ctx context.Context, r Recipient, msg Message) (any, error) {
	owner, ok := IdentityOf(r)
	if !ok {
		return nil, nil
	}

	data, err := DatabaseData(ctx, msg.Notification, r)
	if err != nil {
		return nil, fmt.Errorf("render database payload: %w", err)
	}

	rec, err := c.storage.Create(ctx, Record{
		ID:             msg.ID,
		NotifiableType: owner.Type,
		NotifiableKey:  owner.Key,
		Type:           msg.Type,
		Data:           data,
		CreatedAt:      c.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecordNotStored, err)
	}
	if rec == nil {
		return nil, ErrRecordNotStored
	}
	return rec, nil
}

// DatabaseDriver returns a Factory for database channels backed by storage.
func DatabaseDriver(storage Storage) Factory {
	return func(string, ChannelOptions) (Channel, error) {
		if storage == nil {
			return nil, fmt.Errorf("%w: storage", ErrNilDependency)
		}
		return NewDatabaseChannel(storage), nil
	}
}
