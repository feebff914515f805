package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const userAgent = "notifykit-webhook/1.0"

// Sender posts JSON payloads to webhook endpoints with retries, optional
// signing and circuit breaking.
type Sender struct {
	client *http.Client
	logger *slog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithSenderLogger sets the logger used for retry diagnostics.
func WithSenderLogger(l *slog.Logger) SenderOption {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSender creates a Sender with a pooled HTTP client.
func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send marshals data to JSON and POSTs it to webhookURL. 4xx responses other
// than 408, 425 and 429 fail without retry. The returned result describes the
// last attempt.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) (DeliveryResult, error) {
	if err := validateURL(webhookURL); err != nil {
		return DeliveryResult{}, err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return DeliveryResult{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	o := defaultSendOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.eventID == "" {
		o.eventID = uuid.NewString()
	}

	if o.circuitBreaker != nil && !o.circuitBreaker.Allow() {
		return DeliveryResult{EventID: o.eventID}, ErrCircuitOpen
	}

	var (
		result  DeliveryResult
		lastErr error
	)
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			delay := o.backoffStrategy.NextInterval(attempt)
			s.logger.LogAttrs(ctx, slog.LevelDebug, "retrying webhook delivery",
				logger.NotificationID(o.eventID),
				logger.RetryCount(attempt),
				logger.Duration(delay),
				logger.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return result, errors.Join(lastErr, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err = s.attempt(ctx, webhookURL, payload, o)
		result.Attempt = attempt + 1
		result.EventID = o.eventID
		if o.onDelivery != nil {
			o.onDelivery(result)
		}

		if o.circuitBreaker != nil {
			if err == nil {
				o.circuitBreaker.RecordSuccess()
			} else {
				o.circuitBreaker.RecordFailure()
			}
		}

		if err == nil {
			return result, nil
		}
		lastErr = err

		if isPermanent(result.StatusCode) {
			return result, fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
		if o.circuitBreaker != nil && o.circuitBreaker.State() == CircuitOpen {
			return result, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
	}

	return result, fmt.Errorf("%w after %d attempts: %w", ErrWebhookDeliveryFailed, o.maxRetries+1, lastErr)
}

func validateURL(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

func (s *Sender) attempt(ctx context.Context, webhookURL string, payload []byte, o *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	var result DeliveryResult

	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		result.Error = err
		return result, err
	}

	for k, v := range o.headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderID, o.eventID)

	if o.signatureSecret != "" {
		sig, err := Sign(o.signatureSecret, o.eventID, payload, time.Now())
		if err != nil {
			result.Error = err
			return result, err
		}
		sig.Apply(req.Header)
	}

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if result.Success {
		return result, nil
	}

	msg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
	if len(body) > 0 {
		snippet := strings.ReplaceAll(string(body), "\n", " ")
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		msg += ": " + snippet
	}
	result.Error = errors.New(msg)
	return result, result.Error
}

func isPermanent(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}
