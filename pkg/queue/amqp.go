package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const (
	headerRetryCount = "x-retry-count"
	headerMaxRetries = "x-max-retries"
	headerDelay      = "x-delay"
)

// AMQPPublisher is the publishing side of an AMQP channel. *amqp091.Channel
// satisfies it.
type AMQPPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPRepository publishes tasks to a topic exchange using the queue name as
// routing key. Delays use the x-delay header of the delayed message exchange
// plugin.
type AMQPRepository struct {
	pub      AMQPPublisher
	exchange string
	now      func() time.Time
}

// NewAMQPRepository creates a repository publishing to exchange.
func NewAMQPRepository(pub AMQPPublisher, exchange string) (*AMQPRepository, error) {
	if pub == nil {
		return nil, ErrRepositoryNil
	}
	return &AMQPRepository{pub: pub, exchange: exchange, now: time.Now}, nil
}

// CreateTask implements EnqueuerRepository.
func (r *AMQPRepository) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("queue: task cannot be nil")
	}
	return r.pub.PublishWithContext(ctx, r.exchange, task.Queue, false, false, r.publishing(task))
}

func (r *AMQPRepository) publishing(task *Task) amqp091.Publishing {
	headers := amqp091.Table{
		headerRetryCount: int32(task.RetryCount),
		headerMaxRetries: int32(task.MaxRetries),
	}
	if delay := task.ScheduledAt.Sub(r.now()); delay > 0 {
		headers[headerDelay] = delay.Milliseconds()
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    task.ID.String(),
		Type:         task.TaskName,
		Priority:     uint8(min(int(task.Priority)/10, 9)),
		Timestamp:    task.CreatedAt,
		Headers:      headers,
		Body:         task.Payload,
	}
}

// AMQPConsumerOption configures an AMQPConsumer.
type AMQPConsumerOption func(*AMQPConsumer)

// WithAMQPLogger sets the consumer logger.
func WithAMQPLogger(l *slog.Logger) AMQPConsumerOption {
	return func(c *AMQPConsumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAMQPConcurrency sets how many deliveries are handled in parallel.
func WithAMQPConcurrency(n int) AMQPConsumerOption {
	return func(c *AMQPConsumer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithAMQPRetryDelay sets the base delay for republished retries; the
// delay grows linearly with the retry count.
func WithAMQPRetryDelay(d time.Duration) AMQPConsumerOption {
	return func(c *AMQPConsumer) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// AMQPConsumer dispatches deliveries to handlers by message type. Failed
// deliveries are republished with an incremented retry count until the
// retry budget is spent, then rejected without requeue so a dead-letter
// exchange can pick them up.
type AMQPConsumer struct {
	handlers    *Handlers
	pub         AMQPPublisher
	exchange    string
	concurrency int
	retryDelay  time.Duration
	timeout     time.Duration
	logger      *slog.Logger
}

// NewAMQPConsumer creates a consumer that republishes retries through pub.
func NewAMQPConsumer(pub AMQPPublisher, exchange string, opts ...AMQPConsumerOption) (*AMQPConsumer, error) {
	if pub == nil {
		return nil, ErrRepositoryNil
	}
	c := &AMQPConsumer{
		handlers:    NewHandlers(),
		pub:         pub,
		exchange:    exchange,
		concurrency: 1,
		retryDelay:  30 * time.Second,
		timeout:     5 * time.Minute,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("queue.amqp"))
	return c, nil
}

// RegisterHandlers adds task handlers.
func (c *AMQPConsumer) RegisterHandlers(handlers ...Handler) {
	c.handlers.Register(handlers...)
}

// Consume handles deliveries until ctx is done or the channel closes, then
// waits for in-flight handlers.
func (c *AMQPConsumer) Consume(ctx context.Context, deliveries <-chan amqp091.Delivery) error {
	if c.handlers.Len() == 0 {
		return ErrNoHandlers
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.concurrency)
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				c.HandleDelivery(ctx, d)
			}()
		}
	}
}

// HandleDelivery processes a single delivery and acknowledges it.
func (c *AMQPConsumer) HandleDelivery(ctx context.Context, d amqp091.Delivery) {
	attrs := []slog.Attr{
		slog.String("task_id", d.MessageId),
		slog.String("task_name", d.Type),
		logger.Queue(d.RoutingKey),
	}

	handler, ok := c.handlers.Get(d.Type)
	if !ok {
		c.logger.LogAttrs(ctx, slog.LevelError, "no handler registered for task", attrs...)
		c.settle(ctx, d.Nack(false, false), attrs)
		return
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	err := safeHandle(hctx, handler, &Task{TaskName: d.Type, Payload: d.Body})
	cancel()
	if err == nil {
		c.settle(ctx, d.Ack(false), attrs)
		return
	}

	retry := headerInt(d.Headers, headerRetryCount)
	maxRetries := headerInt(d.Headers, headerMaxRetries)
	attrs = append(attrs, logger.RetryCount(retry), logger.Error(err))
	if retry >= maxRetries {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "task retries exhausted, rejecting", attrs...)
		c.settle(ctx, d.Nack(false, false), attrs)
		return
	}

	c.logger.LogAttrs(ctx, slog.LevelError, "task failed, scheduling retry", attrs...)
	if err := c.republish(ctx, d, retry+1); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to republish task, requeueing", append(attrs, logger.Errors(err))...)
		c.settle(ctx, d.Nack(false, true), attrs)
		return
	}
	c.settle(ctx, d.Ack(false), attrs)
}

func (c *AMQPConsumer) republish(ctx context.Context, d amqp091.Delivery, retry int) error {
	headers := amqp091.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[headerRetryCount] = int32(retry)
	if delay := time.Duration(retry) * c.retryDelay; delay > 0 {
		headers[headerDelay] = delay.Milliseconds()
	} else {
		delete(headers, headerDelay)
	}

	return c.pub.PublishWithContext(ctx, c.exchange, d.RoutingKey, false, false, amqp091.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp091.Persistent,
		MessageId:    d.MessageId,
		Type:         d.Type,
		Priority:     d.Priority,
		Timestamp:    d.Timestamp,
		Headers:      headers,
		Body:         d.Body,
	})
}

func (c *AMQPConsumer) settle(ctx context.Context, err error, attrs []slog.Attr) {
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to acknowledge delivery", append(attrs, logger.Error(err))...)
	}
}

func headerInt(t amqp091.Table, key string) int {
	switch v := t[key].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}

// AMQPConnection owns a broker connection and a confirm-mode channel bound
// to a durable topic exchange.
type AMQPConnection struct {
	conn     *amqp091.Connection
	Channel  *amqp091.Channel
	exchange string
}

// DialAMQP connects to url and declares exchange.
func DialAMQP(url, exchange string, prefetch int) (*AMQPConnection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	if err := ch.Qos(max(prefetch, 1), 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &AMQPConnection{conn: conn, Channel: ch, exchange: exchange}, nil
}

// Deliveries declares a durable queue bound to the exchange with the queue
// name as routing key and starts consuming it.
func (c *AMQPConnection) Deliveries(queue string) (<-chan amqp091.Delivery, error) {
	q, err := c.Channel.QueueDeclare(queue, true, false, false, false, amqp091.Table{"x-max-priority": int32(9)})
	if err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	if err := c.Channel.QueueBind(q.Name, queue, c.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %q: %w", queue, err)
	}
	return c.Channel.Consume(q.Name, "", false, false, false, false, nil)
}

// Close closes the channel and the connection.
func (c *AMQPConnection) Close() error {
	return errors.Join(c.Channel.Close(), c.conn.Close())
}
