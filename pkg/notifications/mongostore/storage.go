package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "notifications"

// Storage is a notifications.Storage backed by a MongoDB collection.
type Storage struct {
	coll      *mongo.Collection
	retention time.Duration
	now       func() time.Time
}

var _ notifications.Storage = (*Storage)(nil)

// Option configures a Storage.
type Option func(*storageOptions)

type storageOptions struct {
	collection string
	retention  time.Duration
}

// WithCollection replaces DefaultCollection.
func WithCollection(name string) Option {
	return func(o *storageOptions) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithRetention makes EnsureIndexes add a TTL index that removes records
// retention after creation.
func WithRetention(retention time.Duration) Option {
	return func(o *storageOptions) {
		o.retention = retention
	}
}

// New creates a storage on db and ensures its indexes.
func New(ctx context.Context, db *mongo.Database, opts ...Option) (*Storage, error) {
	o := storageOptions{collection: DefaultCollection}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Storage{
		coll:      db.Collection(o.collection),
		retention: o.retention,
		now:       time.Now,
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the owner feed index and, with WithRetention, the
// TTL index. It is idempotent.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notifiable_type", Value: 1}, {Key: "notifiable_key", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("owner_created_at"),
		},
	}
	if s.retention > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("created_at_ttl").SetExpireAfterSeconds(int32(s.retention / time.Second)),
		})
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, rec notifications.Record) (*notifications.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	// BSON dates keep milliseconds.
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)

	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: duplicate id %q", notifications.ErrRecordNotStored, rec.ID)
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &rec, nil
}

func (s *Storage) Get(ctx context.Context, id string) (*notifications.Record, error) {
	var rec notifications.Record
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notifications.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &rec, nil
}

func (s *Storage) MarkRead(ctx context.Context, id string) (bool, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "read_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$read_at", s.now().UTC()}}}},
		}}},
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Storage) MarkAllRead(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	res, err := s.coll.UpdateMany(ctx,
		unread(notifiableType, notifiableKey),
		bson.M{"$set": bson.M{"read_at": s.now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *Storage) FindUnread(ctx context.Context, notifiableType, notifiableKey string) ([]notifications.Record, error) {
	return s.find(ctx, unread(notifiableType, notifiableKey))
}

func (s *Storage) FindRead(ctx context.Context, notifiableType, notifiableKey string) ([]notifications.Record, error) {
	return s.find(ctx, bson.M{
		"notifiable_type": notifiableType,
		"notifiable_key":  notifiableKey,
		"read_at":         bson.M{"$ne": nil},
	})
}

func (s *Storage) CountUnread(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	n, err := s.coll.CountDocuments(ctx, unread(notifiableType, notifiableKey))
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return int(n), nil
}

func (s *Storage) DeleteFor(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"notifiable_type": notifiableType, "notifiable_key": notifiableKey})
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *Storage) find(ctx context.Context, filter bson.M) ([]notifications.Record, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	recs := []notifications.Record{}
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	return recs, nil
}

// unread matches both a missing and a null read_at.
func unread(notifiableType, notifiableKey string) bson.M {
	return bson.M{
		"notifiable_type": notifiableType,
		"notifiable_key":  notifiableKey,
		"read_at":         nil,
	}
}
