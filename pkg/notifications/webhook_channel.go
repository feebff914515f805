package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/cache"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// WebhookPayload is the JSON body posted by the webhook channel.
type WebhookPayload struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Locale    string    `json:"locale,omitempty"`
	Recipient *Identity `json:"recipient,omitempty"`
	Data      any       `json:"data"`
	SentAt    time.Time `json:"sent_at"`
}

// WebhookChannel posts notifications to the URL routed for the recipient.
type WebhookChannel struct {
	sender *webhook.Sender
	opts   []webhook.SendOption
	now    func() time.Time

	// Per URL circuit breakers, bounded so unused endpoints are forgotten.
	mu               sync.Mutex
	breakers         *cache.LRUCache[string, *webhook.CircuitBreaker]
	failureThreshold int
	recoveryTimeout  time.Duration
}

// WebhookChannelOption configures a WebhookChannel.
type WebhookChannelOption func(*WebhookChannel)

// WithWebhookSendOptions appends options applied to every delivery.
func WithWebhookSendOptions(opts ...webhook.SendOption) WebhookChannelOption {
	return func(c *WebhookChannel) {
		c.opts = append(c.opts, opts...)
	}
}

// WithWebhookCircuitBreaker opens a per URL breaker after failures
// consecutive failures and probes again after recovery. Up to endpoints
// breakers are kept.
func WithWebhookCircuitBreaker(failures int, recovery time.Duration, endpoints int) WebhookChannelOption {
	return func(c *WebhookChannel) {
		if failures <= 0 || endpoints <= 0 {
			return
		}
		c.failureThreshold = failures
		c.recoveryTimeout = recovery
		c.breakers = cache.NewLRUCache[string, *webhook.CircuitBreaker](endpoints)
	}
}

// NewWebhookChannel creates a webhook channel posting through sender.
func NewWebhookChannel(sender *webhook.Sender, opts ...WebhookChannelOption) *WebhookChannel {
	c := &WebhookChannel{sender: sender, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts ToWebhook wrapped in a WebhookPayload and returns the
// webhook.DeliveryResult. Recipients without a URL are skipped.
func (c *WebhookChannel) Send(ctx context.Context, r Recipient, msg Message) (any, error) {
	url, ok := RouteFor(r, msg.Channel)
	if !ok {
		if url, ok = RouteFor(r, DriverWebhook); !ok {
			return nil, nil
		}
	}

	data, err := Render(ctx, msg.Notification, DriverWebhook, r)
	if err != nil {
		return nil, fmt.Errorf("render webhook payload: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}

	payload := WebhookPayload{
		ID:     msg.ID,
		Type:   msg.Type,
		Locale: msg.Locale,
		Data:   data,
		SentAt: c.now(),
	}
	if id, ok := IdentityOf(r); ok {
		payload.Recipient = &id
	}

	opts := append(c.opts[:len(c.opts):len(c.opts)], webhook.WithEventID(msg.ID+":"+msg.Channel))
	if cb := c.breaker(url); cb != nil {
		opts = append(opts, webhook.WithCircuitBreaker(cb))
	}

	res, err := c.sender.Send(ctx, url, payload, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *WebhookChannel) breaker(url string) *webhook.CircuitBreaker {
	if c.breakers == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers.Get(url); ok {
		return cb
	}
	cb := webhook.NewCircuitBreaker(c.failureThreshold, 1, c.recoveryTimeout)
	c.breakers.Put(url, cb)
	return cb
}

// WebhookDriver returns a Factory for webhook channels. Recognised options:
// secret, max_retries, timeout, headers, circuit_failures, circuit_timeout
// and circuit_endpoints.
func WebhookDriver(sender *webhook.Sender, opts ...WebhookChannelOption) Factory {
	return func(_ string, o ChannelOptions) (Channel, error) {
		if sender == nil {
			return nil, fmt.Errorf("%w: webhook sender", ErrNilDependency)
		}

		var send []webhook.SendOption
		if secret := o.String("secret", ""); secret != "" {
			send = append(send, webhook.WithSignature(secret))
		}
		retries, err := o.Int("max_retries", -1)
		if err != nil {
			return nil, err
		}
		if retries >= 0 {
			send = append(send, webhook.WithMaxRetries(retries))
		}
		timeout, err := o.Duration("timeout", 0)
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			send = append(send, webhook.WithTimeout(timeout))
		}
		headers, err := o.StringMap("headers")
		if err != nil {
			return nil, err
		}
		if len(headers) > 0 {
			send = append(send, webhook.WithHeaders(headers))
		}

		all := append(opts[:len(opts):len(opts)], WithWebhookSendOptions(send...))

		failures, err := o.Int("circuit_failures", 0)
		if err != nil {
			return nil, err
		}
		if failures > 0 {
			recovery, err := o.Duration("circuit_timeout", 30*time.Second)
			if err != nil {
				return nil, err
			}
			endpoints, err := o.Int("circuit_endpoints", 1000)
			if err != nil {
				return nil, err
			}
			all = append(all, WithWebhookCircuitBreaker(failures, recovery, endpoints))
		}

		return NewWebhookChannel(sender, all...), nil
	}
}
