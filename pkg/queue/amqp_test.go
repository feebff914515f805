package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

type ackResult struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	mu  sync.Mutex
	res ackResult
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.res.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.res.nacked = true
	a.res.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func (a *fakeAcknowledger) result() ackResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.res
}

func TestAMQPRepository_CreateTask(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	repo, err := queue.NewAMQPRepository(pub, "tasks")
	require.NoError(t, err)
	enq, err := queue.NewEnqueuer(repo)
	require.NoError(t, err)

	require.NoError(t, enq.Enqueue(context.Background(), testPayload{Message: "x"},
		queue.WithQueue("notifications"),
		queue.WithPriority(queue.PriorityMax),
		queue.WithDelay(time.Minute),
		queue.WithMaxRetries(5),
	))

	msgs := pub.all()
	require.Len(t, msgs, 1)
	got := msgs[0]
	assert.Equal(t, "tasks", got.exchange)
	assert.Equal(t, "notifications", got.key)
	assert.Equal(t, "queue_test.testPayload", got.msg.Type)
	assert.Equal(t, uint8(9), got.msg.Priority)
	assert.Equal(t, amqp091.Persistent, got.msg.DeliveryMode)
	assert.JSONEq(t, `{"message":"x"}`, string(got.msg.Body))
	assert.Equal(t, int32(5), got.msg.Headers["x-max-retries"])
	assert.InDelta(t, time.Minute.Milliseconds(), got.msg.Headers["x-delay"], 1000)

	_, err = queue.NewAMQPRepository(nil, "tasks")
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
}

func delivery(ack *fakeAcknowledger, name string, body string, retry, maxRetries int32) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: ack,
		RoutingKey:   "notifications",
		Type:         name,
		MessageId:    "m-1",
		Body:         []byte(body),
		Headers:      amqp091.Table{"x-retry-count": retry, "x-max-retries": maxRetries},
	}
}

func newConsumer(t *testing.T, pub *fakePublisher, fn queue.TaskHandlerFunc[testPayload]) *queue.AMQPConsumer {
	t.Helper()
	c, err := queue.NewAMQPConsumer(pub, "tasks",
		queue.WithAMQPLogger(discardLogger()),
		queue.WithAMQPRetryDelay(time.Second),
		queue.WithAMQPConcurrency(2),
	)
	require.NoError(t, err)
	c.RegisterHandlers(queue.NewTaskHandler(fn))
	return c
}

func TestAMQPConsumer_HandleDelivery(t *testing.T) {
	t.Parallel()

	name := queue.TaskNameOf(testPayload{})

	t.Run("success acks", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{}
		var got string
		c := newConsumer(t, pub, func(ctx context.Context, p testPayload) error { got = p.Message; return nil })
		ack := &fakeAcknowledger{}
		c.HandleDelivery(context.Background(), delivery(ack, name, `{"message":"hi"}`, 0, 3))
		assert.Equal(t, "hi", got)
		assert.Equal(t, ackResult{acked: true}, ack.result())
		assert.Empty(t, pub.all())
	})

	t.Run("failure republishes with incremented retry", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{}
		c := newConsumer(t, pub, func(context.Context, testPayload) error { return errors.New("down") })
		ack := &fakeAcknowledger{}
		c.HandleDelivery(context.Background(), delivery(ack, name, `{}`, 1, 3))

		assert.Equal(t, ackResult{acked: true}, ack.result())
		msgs := pub.all()
		require.Len(t, msgs, 1)
		assert.Equal(t, "notifications", msgs[0].key)
		assert.Equal(t, int32(2), msgs[0].msg.Headers["x-retry-count"])
		assert.Equal(t, int64(2000), msgs[0].msg.Headers["x-delay"])
	})

	t.Run("exhausted retries rejects", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{}
		c := newConsumer(t, pub, func(context.Context, testPayload) error { return errors.New("down") })
		ack := &fakeAcknowledger{}
		c.HandleDelivery(context.Background(), delivery(ack, name, `{}`, 3, 3))
		assert.Equal(t, ackResult{nacked: true}, ack.result())
		assert.Empty(t, pub.all())
	})

	t.Run("republish failure requeues", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{err: errors.New("broker gone")}
		c := newConsumer(t, pub, func(context.Context, testPayload) error { return errors.New("down") })
		ack := &fakeAcknowledger{}
		c.HandleDelivery(context.Background(), delivery(ack, name, `{}`, 0, 3))
		assert.Equal(t, ackResult{nacked: true, requeue: true}, ack.result())
	})

	t.Run("unknown task rejects", func(t *testing.T) {
		t.Parallel()
		c := newConsumer(t, &fakePublisher{}, func(context.Context, testPayload) error { return nil })
		ack := &fakeAcknowledger{}
		c.HandleDelivery(context.Background(), delivery(ack, "other", `{}`, 0, 3))
		assert.Equal(t, ackResult{nacked: true}, ack.result())
	})
}

func TestAMQPConsumer_Consume(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	var mu sync.Mutex
	var seen []string
	c := newConsumer(t, pub, func(ctx context.Context, p testPayload) error {
		mu.Lock()
		seen = append(seen, p.Message)
		mu.Unlock()
		return nil
	})

	deliveries := make(chan amqp091.Delivery, 3)
	acks := []*fakeAcknowledger{{}, {}, {}}
	name := queue.TaskNameOf(testPayload{})
	deliveries <- delivery(acks[0], name, `{"message":"a"}`, 0, 1)
	deliveries <- delivery(acks[1], name, `{"message":"b"}`, 0, 1)
	deliveries <- delivery(acks[2], name, `{"message":"c"}`, 0, 1)
	close(deliveries)

	require.NoError(t, c.Consume(context.Background(), deliveries))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	for _, a := range acks {
		assert.True(t, a.result().acked)
	}

	empty, err := queue.NewAMQPConsumer(pub, "tasks")
	require.NoError(t, err)
	assert.ErrorIs(t, empty.Consume(context.Background(), deliveries), queue.ErrNoHandlers)
}
