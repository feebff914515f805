package notificationtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// RunStorageTests checks that a notifications.Storage implementation keeps
// the contract the database channel and the Manager rely on. newStorage must
// return an empty storage for every call.
func RunStorageTests(t *testing.T, newStorage func(t *testing.T) notifications.Storage) {
	t.Helper()

	owner := func() notifications.Identity {
		return notifications.Identity{Type: "users", Key: uuid.NewString()}
	}
	record := func(o notifications.Identity, title string, at time.Time) notifications.Record {
		return notifications.Record{
			NotifiableType: o.Type,
			NotifiableKey:  o.Key,
			Type:           "post_published",
			Data:           map[string]any{"title": title},
			CreatedAt:      at,
		}
	}
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	t.Run("create and get", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		o := owner()

		created, err := s.Create(ctx, record(o, "hello", base))
		require.NoError(t, err)
		require.NotNil(t, created)
		require.NotEmpty(t, created.ID)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, o, got.Owner())
		assert.Equal(t, "post_published", got.Type)
		assert.Equal(t, "hello", got.Data["title"])
		assert.False(t, got.IsRead())
		assert.WithinDuration(t, base, got.CreatedAt, time.Millisecond)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Get(context.Background(), uuid.NewString())
		require.ErrorIs(t, err, notifications.ErrRecordNotFound)
	})

	t.Run("preset id", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		rec := record(owner(), "fixed", base)
		rec.ID = uuid.NewString()
		created, err := s.Create(ctx, rec)
		require.NoError(t, err)

		_, err = s.Get(ctx, created.ID)
		require.NoError(t, err)

		if created.ID == rec.ID {
			_, err = s.Create(ctx, rec)
			require.Error(t, err, "duplicate ids are rejected")
		}
	})

	t.Run("mark read", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		created, err := s.Create(ctx, record(owner(), "a", base))
		require.NoError(t, err)

		ok, err := s.MarkRead(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		first, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, first.IsRead())

		ok, err = s.MarkRead(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		second, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, first.ReadAt.Equal(*second.ReadAt), "read_at is kept on repeated reads")

		ok, err = s.MarkRead(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("feeds are per owner and newest first", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		alice, bob := owner(), owner()

		var ids []string
		for i, title := range []string{"one", "two", "three"} {
			created, err := s.Create(ctx, record(alice, title, base.Add(time.Duration(i)*time.Second)))
			require.NoError(t, err)
			ids = append(ids, created.ID)
		}
		_, err := s.Create(ctx, record(bob, "other", base))
		require.NoError(t, err)

		count, err := s.CountUnread(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		unread, err := s.FindUnread(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		require.Len(t, unread, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, recordIDs(unread))

		_, err = s.MarkRead(ctx, ids[1])
		require.NoError(t, err)

		read, err := s.FindRead(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		assert.Equal(t, []string{ids[1]}, recordIDs(read))

		unread, err = s.FindUnread(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		assert.Equal(t, []string{ids[2], ids[0]}, recordIDs(unread))

		changed, err := s.MarkAllRead(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		assert.Equal(t, 2, changed)

		count, err = s.CountUnread(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = s.CountUnread(ctx, bob.Type, bob.Key)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("delete for owner", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		alice, bob := owner(), owner()

		a, err := s.Create(ctx, record(alice, "a", base))
		require.NoError(t, err)
		_, err = s.Create(ctx, record(alice, "b", base.Add(time.Second)))
		require.NoError(t, err)
		b, err := s.Create(ctx, record(bob, "c", base))
		require.NoError(t, err)

		deleted, err := s.DeleteFor(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		_, err = s.Get(ctx, a.ID)
		require.ErrorIs(t, err, notifications.ErrRecordNotFound)
		_, err = s.Get(ctx, b.ID)
		require.NoError(t, err)

		deleted, err = s.DeleteFor(ctx, alice.Type, alice.Key)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("empty owner", func(t *testing.T) {
		s := newStorage(t)
		o := owner()

		unread, err := s.FindUnread(context.Background(), o.Type, o.Key)
		require.NoError(t, err)
		assert.Empty(t, unread)

		changed, err := s.MarkAllRead(context.Background(), o.Type, o.Key)
		require.NoError(t, err)
		assert.Zero(t, changed)
	})
}

func recordIDs(recs []notifications.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
