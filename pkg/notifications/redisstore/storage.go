package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// DefaultPrefix namespaces every key written by Storage.
const DefaultPrefix = "notifications"

// Keys:
//
//	{prefix}:record:{id}           hash with the record fields
//	{prefix}:unread:{type}:{key}   sorted set of unread ids scored by created_at
//	{prefix}:read:{type}:{key}     sorted set of read ids scored by created_at
//
// Scripts touch keys derived from the record hash, so Storage needs a single
// node or a cluster-aware client with all keys on one slot.
var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV, 4))
if tonumber(ARGV[3]) > 0 then redis.call('PEXPIRE', KEYS[1], ARGV[3]) end
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
return 1
`)

	markReadScript = redis.NewScript(`
local rec = KEYS[1]
if redis.call('EXISTS', rec) == 0 then return 0 end
local readAt = redis.call('HGET', rec, 'read_at')
if readAt and readAt ~= '' then return 1 end
local owner = redis.call('HGET', rec, 'owner')
local score = redis.call('HGET', rec, 'score')
local id = redis.call('HGET', rec, 'id')
redis.call('HSET', rec, 'read_at', ARGV[1])
redis.call('ZREM', ARGV[2] .. ':unread:' .. owner, id)
redis.call('ZADD', ARGV[2] .. ':read:' .. owner, score, id)
return 1
`)

	markAllReadScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, -1, 'WITHSCORES')
local n = 0
for i = 1, #ids, 2 do
	redis.call('HSET', ARGV[2] .. ':record:' .. ids[i], 'read_at', ARGV[1])
	redis.call('ZADD', KEYS[2], ids[i + 1], ids[i])
	n = n + 1
end
redis.call('DEL', KEYS[1])
return n
`)
)

// Storage is a notifications.Storage backed by Redis hashes and sorted sets.
type Storage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ notifications.Storage = (*Storage)(nil)

// Option configures a Storage.
type Option func(*Storage)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Storage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires record hashes ttl after creation. Expired ids are skipped
// by the finders and dropped from the sets on the next DeleteFor.
func WithTTL(ttl time.Duration) Option {
	return func(s *Storage) {
		s.ttl = ttl
	}
}

// New creates a storage on client.
func New(client redis.UniversalClient, opts ...Option) *Storage {
	s := &Storage{client: client, prefix: DefaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
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

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: encode data: %w", notifications.ErrRecordNotStored, err)
	}

	owner := ownerSuffix(rec.NotifiableType, rec.NotifiableKey)
	score := strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10)
	readAt := ""
	set := s.unreadKey(owner)
	if rec.ReadAt != nil {
		readAt = rec.ReadAt.UTC().Format(time.RFC3339Nano)
		set = s.readKey(owner)
	}

	created, err := createScript.Run(ctx, s.client,
		[]string{s.recordKey(rec.ID), set},
		score, rec.ID, s.ttl.Milliseconds(),
		"id", rec.ID,
		"notifiable_type", rec.NotifiableType,
		"notifiable_key", rec.NotifiableKey,
		"type", rec.Type,
		"data", string(data),
		"read_at", readAt,
		"created_at", rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		"owner", owner,
		"score", score,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if created == 0 {
		return nil, fmt.Errorf("%w: duplicate id %q", notifications.ErrRecordNotStored, rec.ID)
	}
	return &rec, nil
}

func (s *Storage) Get(ctx context.Context, id string) (*notifications.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if len(fields) == 0 {
		return nil, notifications.ErrRecordNotFound
	}
	rec, err := decode(fields)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Storage) MarkRead(ctx context.Context, id string) (bool, error) {
	n, err := markReadScript.Run(ctx, s.client, []string{s.recordKey(id)}, s.timestamp(), s.prefix).Int()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return n == 1, nil
}

func (s *Storage) MarkAllRead(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	owner := ownerSuffix(notifiableType, notifiableKey)
	n, err := markAllReadScript.Run(ctx, s.client,
		[]string{s.unreadKey(owner), s.readKey(owner)},
		s.timestamp(), s.prefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return n, nil
}

func (s *Storage) FindUnread(ctx context.Context, notifiableType, notifiableKey string) ([]notifications.Record, error) {
	return s.find(ctx, s.unreadKey(ownerSuffix(notifiableType, notifiableKey)))
}

func (s *Storage) FindRead(ctx context.Context, notifiableType, notifiableKey string) ([]notifications.Record, error) {
	return s.find(ctx, s.readKey(ownerSuffix(notifiableType, notifiableKey)))
}

func (s *Storage) CountUnread(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	n, err := s.client.ZCard(ctx, s.unreadKey(ownerSuffix(notifiableType, notifiableKey))).Result()
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return int(n), nil
}

func (s *Storage) DeleteFor(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	owner := ownerSuffix(notifiableType, notifiableKey)
	sets := []string{s.unreadKey(owner), s.readKey(owner)}

	var ids []string
	for _, set := range sets {
		members, err := s.client.ZRange(ctx, set, 0, -1).Result()
		if err != nil {
			return 0, fmt.Errorf("delete notifications: %w", err)
		}
		ids = append(ids, members...)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.recordKey(id))
	}

	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		deleted = p.Del(ctx, keys...)
		p.Del(ctx, sets...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return int(deleted.Val()), nil
}

func (s *Storage) find(ctx context.Context, set string) ([]notifications.Record, error) {
	ids, err := s.client.ZRevRange(ctx, set, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	if len(ids) == 0 {
		return []notifications.Record{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.recordKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}

	out := make([]notifications.Record, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // expired
		}
		rec, err := decode(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Storage) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Storage) recordKey(id string) string {
	return s.prefix + ":record:" + id
}

func (s *Storage) unreadKey(owner string) string {
	return s.prefix + ":unread:" + owner
}

func (s *Storage) readKey(owner string) string {
	return s.prefix + ":read:" + owner
}

// ownerSuffix escapes the type so "a:b"+"c" and "a"+"b:c" never collide.
func ownerSuffix(notifiableType, notifiableKey string) string {
	return url.QueryEscape(notifiableType) + ":" + notifiableKey
}

func decode(fields map[string]string) (notifications.Record, error) {
	rec := notifications.Record{
		ID:             fields["id"],
		NotifiableType: fields["notifiable_type"],
		NotifiableKey:  fields["notifiable_key"],
		Type:           fields["type"],
		Data:           map[string]any{},
	}
	if raw := fields["data"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
			return rec, fmt.Errorf("decode notification %s: %w", rec.ID, err)
		}
	}
	created, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return rec, fmt.Errorf("decode notification %s: %w", rec.ID, err)
	}
	rec.CreatedAt = created
	if raw := fields["read_at"]; raw != "" {
		readAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return rec, fmt.Errorf("decode notification %s: %w", rec.ID, err)
		}
		rec.ReadAt = &readAt
	}
	return rec, nil
}
