package broadcast

import (
	"context"
	"sync"
	"time"
)

// Message is a payload published to a topic.
type Message[T any] struct {
	Topic       string
	Data        T
	PublishedAt time.Time
}

// Subscriber receives messages for one topic.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Topic returns the subscribed topic.
	Topic() string
	// Receive returns the delivery channel. It is closed when the subscription ends.
	Receive() <-chan Message[T]
	// Close ends the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans messages out to the subscribers of a topic.
// Implementations drop messages for slow consumers instead of blocking.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber for topic. The subscription ends when
	// ctx is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string) Subscriber[T]
	// Broadcast publishes msg to the subscribers of msg.Topic.
	Broadcast(ctx context.Context, msg Message[T]) error
	// Close shuts the broadcaster down and closes every subscriber.
	Close() error
}

type subscriber[T any] struct {
	topic  string
	ch     chan Message[T]
	closed bool
	mu     sync.RWMutex
	onDone func()
	once   sync.Once
}

func newSubscriber[T any](topic string, bufferSize int) *subscriber[T] {
	return &subscriber[T]{
		topic: topic,
		ch:    make(chan Message[T], bufferSize),
	}
}

func (s *subscriber[T]) Topic() string { return s.topic }

func (s *subscriber[T]) Receive() <-chan Message[T] { return s.ch }

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	s.mu.Unlock()

	if s.onDone != nil {
		s.once.Do(s.onDone)
	}
	return nil
}

// send never blocks; false means the subscriber is closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
