package notifications

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage for development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]Record
	owners  map[Identity][]string // insertion order per owner
	newID   func() string
	now     func() time.Time
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithRecordIDs makes the storage assign its own IDs, replacing the ones
// passed to Create, the way a database with generated keys does.
func WithRecordIDs(fn func() string) MemoryStorageOption {
	return func(s *MemoryStorage) {
		s.newID = fn
	}
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		records: make(map[string]Record),
		owners:  make(map[Identity][]string),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStorage) Create(_ context.Context, rec Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.newID != nil:
		rec.ID = s.newID()
	case rec.ID == "":
		rec.ID = uuid.New().String()
	}
	if _, exists := s.records[rec.ID]; exists {
		return nil, ErrRecordNotStored
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Data = maps.Clone(rec.Data)

	s.records[rec.ID] = rec
	owner := rec.Owner()
	s.owners[owner] = append(s.owners[owner], rec.ID)

	out := rec
	return &out, nil
}

func (s *MemoryStorage) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	if rec.ReadAt == nil {
		now := s.now()
		rec.ReadAt = &now
		s.records[id] = rec
	}
	return true, nil
}

func (s *MemoryStorage) MarkAllRead(_ context.Context, notifiableType, notifiableKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, id := range s.owners[Identity{Type: notifiableType, Key: notifiableKey}] {
		rec := s.records[id]
		if rec.ReadAt != nil {
			continue
		}
		rec.ReadAt = &now
		s.records[id] = rec
		count++
	}
	return count, nil
}

func (s *MemoryStorage) FindUnread(_ context.Context, notifiableType, notifiableKey string) ([]Record, error) {
	return s.find(notifiableType, notifiableKey, false), nil
}

func (s *MemoryStorage) FindRead(_ context.Context, notifiableType, notifiableKey string) ([]Record, error) {
	return s.find(notifiableType, notifiableKey, true), nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, notifiableType, notifiableKey string) (int, error) {
	return len(s.find(notifiableType, notifiableKey, false)), nil
}

func (s *MemoryStorage) DeleteFor(_ context.Context, notifiableType, notifiableKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := Identity{Type: notifiableType, Key: notifiableKey}
	ids := s.owners[owner]
	for _, id := range ids {
		delete(s.records, id)
	}
	delete(s.owners, owner)
	return len(ids), nil
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStorage) find(notifiableType, notifiableKey string, read bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.owners[Identity{Type: notifiableType, Key: notifiableKey}]
	out := make([]Record, 0, len(ids))
	for _, id := range slices.Backward(ids) {
		rec := s.records[id]
		if rec.IsRead() == read {
			out = append(out, rec)
		}
	}
	return out
}
