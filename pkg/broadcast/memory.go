package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

// MemoryBroadcaster is an in-process Broadcaster. Slow subscribers are
// dropped rather than blocking publishers. All methods are safe for
// concurrent use.
type MemoryBroadcaster[T any] struct {
	topics     map[string]map[*subscriber[T]]struct{}
	bufferSize int
	history    *cache.LRUCache[string, []Message[T]]
	replay     int
	historyMu  sync.Mutex
	closed     bool
	mu         sync.RWMutex
	cleanupWg  sync.WaitGroup
}

// Option configures a MemoryBroadcaster.
type Option func(*options)

type options struct {
	replayTopics int
	replayDepth  int
}

// WithReplay keeps the last depth messages for up to topics recently used
// topics. New subscribers receive that history before live messages.
func WithReplay(topics, depth int) Option {
	return func(o *options) {
		o.replayTopics = topics
		o.replayDepth = depth
	}
}

// NewMemoryBroadcaster creates a broadcaster whose subscribers buffer up to
// bufferSize messages. A minimum buffer size of 1 is enforced.
func NewMemoryBroadcaster[T any](bufferSize int, opts ...Option) *MemoryBroadcaster[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	b := &MemoryBroadcaster[T]{
		topics:     make(map[string]map[*subscriber[T]]struct{}),
		bufferSize: max(bufferSize, 1),
	}
	if o.replayTopics > 0 && o.replayDepth > 0 {
		b.history = cache.NewLRUCache[string, []Message[T]](o.replayTopics)
		b.replay = o.replayDepth
		b.bufferSize = max(b.bufferSize, b.replay)
	}
	return b
}

// Subscribe registers a subscriber for topic. If the broadcaster is closed
// the returned subscriber is already closed.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context, topic string) Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber[T](topic, b.bufferSize)
	if b.closed {
		_ = sub.Close()
		return sub
	}

	if b.history != nil {
		b.historyMu.Lock()
		past, _ := b.history.Get(topic)
		b.historyMu.Unlock()
		for _, msg := range past {
			sub.send(msg)
		}
	}

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*subscriber[T]]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	sub.onDone = func() { go b.unsubscribe(sub) }

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub
}

// Broadcast publishes msg to the current subscribers of msg.Topic. It
// returns ErrBroadcasterClosed after Close.
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBroadcasterClosed
	}

	if b.history != nil {
		b.remember(msg)
	}

	for sub := range b.topics[msg.Topic] {
		if !sub.send(msg) {
			go b.unsubscribe(sub)
		}
	}

	return nil
}

// Subscribers returns the number of active subscribers for topic.
func (b *MemoryBroadcaster[T]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close shuts down the broadcaster and closes all subscribers. It is safe to
// call Close multiple times.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*subscriber[T]
	for _, set := range b.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	clear(b.topics)
	if b.history != nil {
		b.history.Clear()
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) remember(msg Message[T]) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	past, _ := b.history.Get(msg.Topic)
	next := make([]Message[T], 0, min(len(past)+1, b.replay))
	if len(past)+1 > b.replay {
		past = past[len(past)+1-b.replay:]
	}
	next = append(next, past...)
	next = append(next, msg)
	b.history.Put(msg.Topic, next)
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	if set, ok := b.topics[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.topics, sub.topic)
		}
	}
	b.mu.Unlock()

	sub.mu.Lock()
	if !sub.closed {
		close(sub.ch)
		sub.closed = true
	}
	sub.mu.Unlock()
}
