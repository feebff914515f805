package notifications

import (
	"errors"
	"fmt"
)

var (
	ErrChannelNotConfigured     = errors.New("notifications: channel not configured")
	ErrUnknownDriver            = errors.New("notifications: unknown channel driver")
	ErrNilChannel               = errors.New("notifications: channel factory returned nil")
	ErrUnknownConnection        = errors.New("notifications: unknown queue connection")
	ErrInvalidPayload           = errors.New("notifications: invalid rendered payload")
	ErrInvalidOption            = errors.New("notifications: invalid channel option")
	ErrInvalidFailurePolicy     = errors.New("notifications: invalid failure policy")
	ErrRecordNotFound           = errors.New("notifications: record not found")
	ErrRecordNotStored          = errors.New("notifications: record not stored")
	ErrRecipientNotFound        = errors.New("notifications: recipient not found")
	ErrAnonymousRecipient       = errors.New("notifications: recipient has no identity")
	ErrUnknownNotificationType  = errors.New("notifications: unknown notification type")
	ErrNilDependency            = errors.New("notifications: nil dependency")
	ErrFailedToLoadChannelsFile = errors.New("notifications: failed to load channels file")
)

// ConfigurationError reports a channel or queue connection that cannot be
// resolved. It fails only the affected delivery attempt.
type ConfigurationError struct {
	Channel    string
	Driver     string
	Connection string
	Err        error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Connection != "":
		return fmt.Sprintf("queue connection %q: %v", e.Connection, e.Err)
	case e.Driver != "":
		return fmt.Sprintf("channel %q (driver %q): %v", e.Channel, e.Driver, e.Err)
	default:
		return fmt.Sprintf("channel %q: %v", e.Channel, e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// DeliveryError wraps a fault raised by a channel.
type DeliveryError struct {
	Channel        string
	NotificationID string
	Recipient      Identity
	Err            error
}

func (e *DeliveryError) Error() string {
	who := "anonymous"
	if e.Recipient.Key != "" {
		who = e.Recipient.String()
	}
	return fmt.Sprintf("deliver %s via %q to %s: %v", e.NotificationID, e.Channel, who, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
