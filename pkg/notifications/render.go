package notifications

import (
	"context"
	"fmt"
)

// DatabaseRenderer renders the payload stored by the database channel.
type DatabaseRenderer interface {
	ToDatabase(ctx context.Context, r Recipient) (map[string]any, error)
}

// MailRenderer renders the mail channel message. A nil message skips delivery.
type MailRenderer interface {
	ToMail(ctx context.Context, r Recipient) (*MailMessage, error)
}

// BroadcastRenderer renders the payload published by the broadcast channel.
type BroadcastRenderer interface {
	ToBroadcast(ctx context.Context, r Recipient) (map[string]any, error)
}

// WebhookRenderer renders the body posted by the webhook channel.
type WebhookRenderer interface {
	ToWebhook(ctx context.Context, r Recipient) (any, error)
}

// ChannelRenderer renders payloads for any channel, including third party
// ones. Typed renderers take precedence for built-in channels.
type ChannelRenderer interface {
	RenderFor(ctx context.Context, channel string, r Recipient) (any, error)
}

// Render returns the payload of n for channel, which is either a built-in
// driver name or a custom channel name. Notifications without a matching
// renderer produce a nil payload.
func Render(ctx context.Context, n Notification, channel string, r Recipient) (any, error) {
	switch channel {
	case DriverDatabase:
		if v, ok := n.(DatabaseRenderer); ok {
			return v.ToDatabase(ctx, r)
		}
	case DriverMail:
		if v, ok := n.(MailRenderer); ok {
			return v.ToMail(ctx, r)
		}
	case DriverBroadcast:
		if v, ok := n.(BroadcastRenderer); ok {
			return v.ToBroadcast(ctx, r)
		}
	case DriverWebhook:
		if v, ok := n.(WebhookRenderer); ok {
			return v.ToWebhook(ctx, r)
		}
	}
	if v, ok := n.(ChannelRenderer); ok {
		return v.RenderFor(ctx, channel, r)
	}
	return nil, nil
}

// DatabaseData renders the database payload of n. The result is never nil.
func DatabaseData(ctx context.Context, n Notification, r Recipient) (map[string]any, error) {
	return renderMap(ctx, n, DriverDatabase, r)
}

// BroadcastData renders the broadcast payload of n. The result is never nil.
func BroadcastData(ctx context.Context, n Notification, r Recipient) (map[string]any, error) {
	return renderMap(ctx, n, DriverBroadcast, r)
}

// MailData renders the mail message of n. A nil message means nothing to send.
func MailData(ctx context.Context, n Notification, r Recipient) (*MailMessage, error) {
	v, err := Render(ctx, n, DriverMail, r)
	if err != nil || v == nil {
		return nil, err
	}
	switch m := v.(type) {
	case *MailMessage:
		return m, nil
	case MailMessage:
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: mail payload is %T", ErrInvalidPayload, v)
	}
}

func renderMap(ctx context.Context, n Notification, channel string, r Recipient) (map[string]any, error) {
	v, err := Render(ctx, n, channel, r)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		if m == nil {
			return map[string]any{}, nil
		}
		return m, nil
	case *DatabaseMessage:
		return m.ToMap(), nil
	default:
		return nil, fmt.Errorf("%w: %s payload is %T", ErrInvalidPayload, channel, v)
	}
}
