// Package webhook delivers JSON payloads to HTTP endpoints.
//
//	sender := webhook.NewSender(webhook.WithSenderLogger(log))
//	res, err := sender.Send(ctx, "https://example.com/hooks", payload,
//		webhook.WithSignature(secret),
//		webhook.WithEventID(notificationID),
//		webhook.WithCircuitBreaker(breaker),
//	)
//
// Attempts are retried with exponential backoff on network errors, 5xx, 408,
// 425 and 429. Other 4xx responses are permanent and wrap ErrPermanentFailure.
// Signed requests carry X-Webhook-Signature, X-Webhook-Timestamp and
// X-Webhook-ID; receivers check them with SignatureFromHeaders and Verify.
package webhook
