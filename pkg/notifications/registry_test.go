package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

func countingFactory(builds *int) notifications.Factory {
	return func(string, notifications.ChannelOptions) (notifications.Channel, error) {
		*builds++
		return &recordingChannel{}, nil
	}
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	t.Run("lazy and memoized", func(t *testing.T) {
		t.Parallel()

		builds := 0
		r := notifications.NewRegistry()
		r.Register("sms", countingFactory(&builds))
		r.SetConfig("alerts", notifications.ChannelConfig{Driver: "sms"})
		assert.Zero(t, builds)

		first, err := r.Get("alerts")
		require.NoError(t, err)
		second, err := r.Get("alerts")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, builds)
	})

	t.Run("driver name without config", func(t *testing.T) {
		t.Parallel()

		builds := 0
		r := notifications.NewRegistry()
		r.Register("sms", countingFactory(&builds))

		first, err := r.Get("sms")
		require.NoError(t, err)
		second, err := r.Get("sms")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, builds)
		assert.False(t, r.Has("sms"))
		assert.Empty(t, r.Configured())

		r.Drop("sms")
		_, err = r.Get("sms")
		require.NoError(t, err)
		assert.Equal(t, 2, builds)

		r.Reset()
		_, err = r.Get("sms")
		require.NoError(t, err)
		assert.Equal(t, 3, builds)
		assert.False(t, r.Has("sms"))
	})

	t.Run("options reach the factory", func(t *testing.T) {
		t.Parallel()

		var got notifications.ChannelOptions
		var gotName string
		r := notifications.NewRegistry()
		r.Register("sms", func(name string, opts notifications.ChannelOptions) (notifications.Channel, error) {
			gotName, got = name, opts
			return &recordingChannel{}, nil
		})
		r.SetConfig("alerts", notifications.ChannelConfig{Driver: "sms", Options: notifications.ChannelOptions{"from": "ACME"}})

		_, err := r.Get("alerts")
		require.NoError(t, err)
		assert.Equal(t, "alerts", gotName)
		assert.Equal(t, "ACME", got.String("from", ""))
	})

	tests := []struct {
		name    string
		setup   func(r *notifications.Registry)
		channel string
		wantErr error
	}{
		{
			name:    "not configured",
			setup:   func(*notifications.Registry) {},
			channel: "slack",
			wantErr: notifications.ErrChannelNotConfigured,
		},
		{
			name: "unknown driver",
			setup: func(r *notifications.Registry) {
				r.SetConfig("slack", notifications.ChannelConfig{Driver: "slack-v2"})
			},
			channel: "slack",
			wantErr: notifications.ErrUnknownDriver,
		},
		{
			name: "factory error",
			setup: func(r *notifications.Registry) {
				r.Register("slack", func(string, notifications.ChannelOptions) (notifications.Channel, error) {
					return nil, notifications.ErrInvalidOption
				})
			},
			channel: "slack",
			wantErr: notifications.ErrInvalidOption,
		},
		{
			name: "factory returns nil",
			setup: func(r *notifications.Registry) {
				r.Register("slack", func(string, notifications.ChannelOptions) (notifications.Channel, error) {
					return nil, nil
				})
			},
			channel: "slack",
			wantErr: notifications.ErrNilChannel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := notifications.NewRegistry()
			tt.setup(r)

			_, err := r.Get(tt.channel)
			require.ErrorIs(t, err, tt.wantErr)

			var ce *notifications.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.channel, ce.Channel)
		})
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	t.Parallel()

	builds := 0
	r := notifications.NewRegistry()
	r.Register("sms", countingFactory(&builds))
	r.SetConfig("b", notifications.ChannelConfig{Driver: "sms"})
	r.SetConfig("a", notifications.ChannelConfig{Driver: "sms"})
	r.Set("c", &recordingChannel{})

	assert.Equal(t, []string{"a", "b", "c"}, r.Configured())
	assert.True(t, r.Has("a"))
	assert.True(t, r.Has("c"))

	_, err := r.Get("a")
	require.NoError(t, err)

	r.SetConfig("a", notifications.ChannelConfig{Driver: "sms"})
	_, err = r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 2, builds, "replacing the config rebuilds the instance")

	r.Drop("a")
	assert.False(t, r.Has("a"))
	_, err = r.Get("a")
	require.ErrorIs(t, err, notifications.ErrChannelNotConfigured)

	r.Reset()
	assert.Empty(t, r.Configured())
	_, err = r.Get("sms")
	require.NoError(t, err, "drivers survive a reset")
}

type smsProvider struct {
	provides []string
}

func (p smsProvider) Provides() []string { return p.provides }

func (p smsProvider) Register(r *notifications.Registry) {
	r.Register("sms", func(string, notifications.ChannelOptions) (notifications.Channel, error) {
		return &recordingChannel{}, nil
	})
}

func TestRegistry_Use(t *testing.T) {
	t.Parallel()

	r := notifications.NewRegistry()
	require.NoError(t, r.Use(smsProvider{provides: []string{"sms"}}))
	_, err := r.Get("sms")
	require.NoError(t, err)

	err = r.Use(smsProvider{provides: []string{"sms", "voice"}})
	require.ErrorIs(t, err, notifications.ErrChannelNotConfigured)
}

func TestLoadChannelConfigs(t *testing.T) {
	t.Parallel()

	configs, err := notifications.LoadChannelConfigs("testdata/channels.yaml")
	require.NoError(t, err)
	require.Len(t, configs, 3)

	assert.Equal(t, "database", configs["database"].Driver)
	assert.Equal(t, "notifications", configs["mail"].Options.String("tag", ""))

	alerts := configs["alerts"]
	assert.Equal(t, "webhook", alerts.Driver)

	retries, err := alerts.Options.Int("max_retries", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, retries)

	timeout, err := alerts.Options.Duration("timeout", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)

	headers, err := alerts.Options.StringMap("headers")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Env": "test"}, headers)

	r := notifications.NewRegistry()
	r.Configure(configs)
	assert.Equal(t, []string{"alerts", "database", "mail"}, r.Configured())

	r.Register("webhook", notifications.WebhookDriver(webhook.NewSender()))
	ch, err := r.Get("alerts")
	require.NoError(t, err)
	assert.IsType(t, &notifications.WebhookChannel{}, ch)

	_, err = notifications.LoadChannelConfigs("testdata/missing.yaml")
	require.ErrorIs(t, err, notifications.ErrFailedToLoadChannelsFile)

	_, err = notifications.ParseChannelConfigs([]byte("channels:\n  x:\n    options: {}\n"))
	require.ErrorIs(t, err, notifications.ErrFailedToLoadChannelsFile)
}

func TestChannelOptions(t *testing.T) {
	t.Parallel()

	o := notifications.ChannelOptions{
		"n":      "7",
		"bad":    "seven",
		"flag":   "true",
		"secs":   3,
		"slice":  []string{"x"},
		"nested": notifications.ChannelOptions{"X-Env": "test"},
		"mixed":  notifications.ChannelOptions{"X-Retry": 3},
	}

	n, err := o.Int("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = o.Int("bad", 0)
	require.ErrorIs(t, err, notifications.ErrInvalidOption)

	n, err = o.Int("absent", 9)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	flag, err := o.Bool("flag", false)
	require.NoError(t, err)
	assert.True(t, flag)

	d, err := o.Duration("secs", 0)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	_, err = o.StringMap("slice")
	require.ErrorIs(t, err, notifications.ErrInvalidOption)

	headers, err := o.StringMap("nested")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Env": "test"}, headers)

	_, err = o.StringMap("mixed")
	require.ErrorIs(t, err, notifications.ErrInvalidOption)

	assert.Equal(t, "fallback", o.String("absent", "fallback"))
}

func TestChannelFunc(t *testing.T) {
	t.Parallel()

	ch := notifications.ChannelFunc(func(_ context.Context, _ notifications.Recipient, msg notifications.Message) (any, error) {
		return msg.Channel, nil
	})
	resp, err := ch.Send(context.Background(), user{ID: "1"}, notifications.Message{Channel: "sms"})
	require.NoError(t, err)
	assert.Equal(t, "sms", resp)
}
