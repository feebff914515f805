package webhook

import (
	"net/http"
	"time"
)

// DeliveryResult describes one delivery attempt, or the final attempt when
// returned from Send.
type DeliveryResult struct {
	EventID    string        `json:"event_id"`
	StatusCode int           `json:"status_code"`
	Attempt    int           `json:"attempt"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      error         `json:"-"`
}

// DeliveryHook observes each delivery attempt.
type DeliveryHook func(result DeliveryResult)

type sendOptions struct {
	timeout         time.Duration
	headers         http.Header
	maxRetries      int
	backoffStrategy BackoffStrategy
	signatureSecret string
	eventID         string
	circuitBreaker  *CircuitBreaker
	onDelivery      DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:         10 * time.Second,
		headers:         make(http.Header),
		maxRetries:      3,
		backoffStrategy: DefaultBackoffStrategy(),
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithTimeout sets the per-attempt timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers.Set(key, value)
		}
	}
}

// WithHeaders adds request headers.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			if k != "" && v != "" {
				o.headers.Set(k, v)
			}
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt. Default is 3.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithNoRetry makes a single attempt.
func WithNoRetry() SendOption {
	return WithMaxRetries(0)
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(strategy BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if strategy != nil {
			o.backoffStrategy = strategy
		}
	}
}

// WithSignature signs the payload with HMAC-SHA256.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithEventID sets the X-Webhook-ID header used by receivers for
// idempotency. A random ID is generated otherwise.
func WithEventID(id string) SendOption {
	return func(o *sendOptions) {
		o.eventID = id
	}
}

// WithCircuitBreaker guards the endpoint with cb. Share one breaker per endpoint.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.circuitBreaker = cb
	}
}

// WithOnDelivery registers a hook invoked after every attempt.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}
