package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/mongostore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/notificationtest"
)

// Integration tests run when NOTIFYKIT_TEST_MONGO_URL is set, for example
// mongodb://localhost:27017.
func TestStorage(t *testing.T) {
	url := os.Getenv("NOTIFYKIT_TEST_MONGO_URL")
	if url == "" {
		t.Skip("NOTIFYKIT_TEST_MONGO_URL is not set")
	}

	ctx := context.Background()
	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "notifykit_test",
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    10,
		RetryAttempts:  1,
	})
	require.NoError(t, err)

	collection := "notifications_" + uuid.NewString()
	t.Cleanup(func() {
		_ = db.Collection(collection).Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	notificationtest.RunStorageTests(t, func(t *testing.T) notifications.Storage {
		s, err := mongostore.New(ctx, db, mongostore.WithCollection(collection))
		require.NoError(t, err)
		return s
	})

	t.Run("retention index", func(t *testing.T) {
		name := collection + "_ttl"
		t.Cleanup(func() { _ = db.Collection(name).Drop(context.Background()) })

		s, err := mongostore.New(ctx, db, mongostore.WithCollection(name), mongostore.WithRetention(time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.EnsureIndexes(ctx), "indexes are idempotent")

		specs, err := db.Collection(name).Indexes().ListSpecifications(ctx)
		require.NoError(t, err)

		var names []string
		for _, idx := range specs {
			names = append(names, idx.Name)
		}
		assert.Contains(t, names, "owner_created_at")
		assert.Contains(t, names, "created_at_ttl")
	})
}
