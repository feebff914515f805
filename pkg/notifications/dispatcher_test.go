package notifications_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/i18n"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type fixture struct {
	registry   *notifications.Registry
	dispatcher *notifications.Dispatcher
	log        *eventLog
	storage    *notifications.MemoryStorage
	channels   map[string]*recordingChannel
}

func newFixture(t *testing.T, storageOpts []notifications.MemoryStorageOption, opts ...notifications.DispatcherOption) *fixture {
	t.Helper()

	f := &fixture{
		registry: notifications.NewRegistry(),
		log:      &eventLog{},
		storage:  notifications.NewMemoryStorage(storageOpts...),
		channels: map[string]*recordingChannel{},
	}
	f.registry.Register(notifications.DriverDatabase, notifications.DatabaseDriver(f.storage))
	for _, name := range []string{"a", "b", "mail"} {
		ch := &recordingChannel{}
		f.channels[name] = ch
		f.registry.Set(name, ch)
	}

	all := append([]notifications.DispatcherOption{
		notifications.WithEvents(newEvents(f.log)),
		notifications.WithIDGenerator(sequence("gen")),
		notifications.WithDispatcherLogger(discardLogger()),
	}, opts...)
	f.dispatcher = notifications.NewDispatcher(f.registry, all...)
	return f
}

func TestDispatcher_EmptyViaSkipsRecipient(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	err := f.dispatcher.Send(context.Background(), greeting{}, user{ID: "1"}, notifications.Route("mail", "x@example.com"))
	require.NoError(t, err)

	assert.Empty(t, f.log.names())
	assert.Empty(t, f.channels["a"].Calls())
	assert.Zero(t, f.storage.Len())
}

func TestDispatcher_EventOrderFollowsVia(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"b", "a"}}, user{ID: "1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sending:b", "sent:b", "sending:a", "sent:a"}, f.log.names())
}

func TestDispatcher_IDHandOff(t *testing.T) {
	t.Parallel()

	t.Run("stored id replaces generated id for later channels", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, []notifications.MemoryStorageOption{
			notifications.WithRecordIDs(func() string { return "abc-123" }),
		})
		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"database", "mail"}}, user{ID: "1"})
		require.NoError(t, err)

		rec, err := f.storage.Get(context.Background(), "abc-123")
		require.NoError(t, err)
		assert.Equal(t, "users", rec.NotifiableType)
		assert.Equal(t, "1", rec.NotifiableKey)

		calls := f.channels["mail"].Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "abc-123", calls[0].Message.ID)

		sending := f.log.byName(notifications.EventSending)
		require.Len(t, sending, 2)
		assert.Equal(t, "gen-1", sending[0].Message.ID)
		assert.Equal(t, "abc-123", sending[1].Message.ID)
	})

	t.Run("database alias hands off its stored id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, []notifications.MemoryStorageOption{
			notifications.WithRecordIDs(func() string { return "abc-123" }),
		})
		f.registry.SetConfig("feed", notifications.ChannelConfig{Driver: notifications.DriverDatabase})
		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"feed", "mail"}}, user{ID: "1"})
		require.NoError(t, err)

		assert.Equal(t, "abc-123", f.channels["mail"].Calls()[0].Message.ID)
	})

	t.Run("other channels never replace the id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		f.channels["a"].resp = &notifications.Record{ID: "from-a"}
		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a", "b"}}, user{ID: "1"})
		require.NoError(t, err)

		assert.Equal(t, "gen-1", f.channels["b"].Calls()[0].Message.ID)
	})

	t.Run("generated id is shared when storage keeps it", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"database", "a", "b"}}, user{ID: "1"})
		require.NoError(t, err)

		_, err = f.storage.Get(context.Background(), "gen-1")
		require.NoError(t, err)
		assert.Equal(t, "gen-1", f.channels["a"].Calls()[0].Message.ID)
		assert.Equal(t, "gen-1", f.channels["b"].Calls()[0].Message.ID)
	})

	t.Run("preset id is never replaced", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, []notifications.MemoryStorageOption{
			notifications.WithRecordIDs(func() string { return "abc-123" }),
		})
		n := greeting{Meta: notifications.Meta{ID: "fixed"}, Channels: []string{"database", "mail"}}
		require.NoError(t, f.dispatcher.Send(context.Background(), n, user{ID: "1"}))

		assert.Equal(t, "fixed", f.channels["mail"].Calls()[0].Message.ID)
	})

	t.Run("each recipient gets its own id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a", "b"}}, user{ID: "1"}, user{ID: "2"})
		require.NoError(t, err)

		a := f.channels["a"].Calls()
		b := f.channels["b"].Calls()
		require.Len(t, a, 2)
		assert.Equal(t, "gen-1", a[0].Message.ID)
		assert.Equal(t, "gen-1", b[0].Message.ID)
		assert.Equal(t, "gen-2", a[1].Message.ID)
		assert.Equal(t, "gen-2", b[1].Message.ID)
	})
}

func TestDispatcher_Vetoes(t *testing.T) {
	t.Parallel()

	t.Run("stopped sending event", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		f.dispatcher.Events().On(notifications.EventSending, func(_ context.Context, e *notifications.Event) {
			if e.Channel == "a" {
				e.Stop()
			}
		})

		require.NoError(t, f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a", "b"}}, user{ID: "1"}))

		assert.Empty(t, f.channels["a"].Calls())
		assert.Len(t, f.channels["b"].Calls(), 1)
		assert.Equal(t, []string{"sending:a", "sending:b", "sent:b"}, f.log.names())
	})

	t.Run("should send false", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		n := greeting{Channels: []string{"a", "b"}, Vetoed: map[string]bool{"b": true}}
		require.NoError(t, f.dispatcher.Send(context.Background(), n, user{ID: "1"}))

		assert.Len(t, f.channels["a"].Calls(), 1)
		assert.Empty(t, f.channels["b"].Calls())
		assert.Equal(t, []string{"sending:a", "sent:a", "sending:b"}, f.log.names())
	})
}

func TestDispatcher_LocalePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		notifLoc   string
		engineLoc  string
		preference string
		want       string
	}{
		{name: "notification wins", notifLoc: "de", engineLoc: "fr", preference: "es", want: "de"},
		{name: "dispatcher over recipient", engineLoc: "fr", preference: "es", want: "fr"},
		{name: "recipient preference", preference: "pt_BR", want: "pt-BR"},
		{name: "none", want: ""},
		{name: "unparsable notification locale", notifLoc: "!!", engineLoc: "fr", want: "fr"},
		{name: "unparsable dispatcher locale", engineLoc: "!!", preference: "es", want: "es"},
		{name: "unparsable everywhere", notifLoc: "!!", preference: "??", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil, notifications.WithLocale(tt.engineLoc))
			n := greeting{Meta: notifications.Meta{Locale: tt.notifLoc}, Channels: []string{"a"}}
			require.NoError(t, f.dispatcher.Send(context.Background(), n, user{ID: "1", Lang: tt.preference}))

			calls := f.channels["a"].Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0].Locale)
			assert.Equal(t, tt.want, calls[0].Message.Locale)
		})
	}
}

func TestDispatcher_LocaleRestoredPerRecipient(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, notifications.WithFailurePolicy(notifications.ContinueOnFailure))
	failing := &recordingChannel{err: errors.New("boom")}
	f.registry.Set("failing", failing)

	ctx := i18n.SetLocale(context.Background(), "de")
	n := greeting{Channels: []string{"failing", "a"}}
	err := f.dispatcher.Send(ctx, n, user{ID: "1", Lang: "fr"}, user{ID: "2"})
	require.Error(t, err)

	calls := f.channels["a"].Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "fr", failing.Calls()[0].Locale)
	assert.Equal(t, "fr", calls[0].Locale)
	assert.Equal(t, "de", failing.Calls()[1].Locale)
	assert.Equal(t, "de", calls[1].Locale)
	assert.Equal(t, "de", i18n.GetLocale(ctx))
}

func TestDispatcher_FailurePolicy(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	t.Run("abort on first fault", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		f.channels["a"].err = boom

		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a", "b"}}, user{ID: "1"}, user{ID: "2"})
		require.ErrorIs(t, err, boom)

		var de *notifications.DeliveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "a", de.Channel)
		assert.Equal(t, "1", de.Recipient.Key)

		failed := f.log.byName(notifications.EventFailed)
		require.Len(t, failed, 1)
		assert.Same(t, boom, failed[0].Err)
		assert.Len(t, f.channels["a"].Calls(), 1)
		assert.Empty(t, f.channels["b"].Calls())
		assert.Empty(t, f.log.byName(notifications.EventSent))
	})

	t.Run("continue collects faults", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil, notifications.WithFailurePolicy(notifications.ContinueOnFailure))
		f.channels["a"].err = boom

		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a", "b"}}, user{ID: "1"}, user{ID: "2"})
		require.ErrorIs(t, err, boom)

		assert.Len(t, f.log.byName(notifications.EventFailed), 2)
		assert.Len(t, f.log.byName(notifications.EventSent), 2)
		assert.Len(t, f.channels["b"].Calls(), 2)
	})

	t.Run("configuration error fails only that channel", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		err := f.dispatcher.Send(context.Background(), greeting{Channels: []string{"missing", "a"}}, user{ID: "1"})
		require.ErrorIs(t, err, notifications.ErrChannelNotConfigured)
		assert.True(t, notifications.IsConfigurationError(err))

		assert.Len(t, f.channels["a"].Calls(), 1)
		assert.Equal(t, []string{"sending:missing", "failed:missing", "sending:a", "sent:a"}, f.log.names())
	})
}

func TestDispatcher_TwoRecipients(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	alice, bob := user{ID: "alice"}, user{ID: "bob"}
	require.NoError(t, f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a"}}, alice, bob))

	sent := f.log.byName(notifications.EventSent)
	require.Len(t, sent, 2)
	assert.Equal(t, alice, sent[0].Recipient)
	assert.Equal(t, "a", sent[0].Channel)
	assert.Equal(t, bob, sent[1].Recipient)
	assert.Equal(t, "a", sent[1].Channel)
}

func TestDispatcher_SentEventCarriesResponse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	require.NoError(t, f.dispatcher.Send(context.Background(), greeting{Channels: []string{"database"}, Title: "hi"}, user{ID: "1"}))

	sent := f.log.byName(notifications.EventSent)
	require.Len(t, sent, 1)
	rec, ok := sent[0].Response.(*notifications.Record)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"title": "hi"}, rec.Data)
	assert.Nil(t, rec.ReadAt)
}

func TestDispatcher_SendVariants(t *testing.T) {
	t.Parallel()

	t.Run("send via overrides channels", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		require.NoError(t, f.dispatcher.SendVia(context.Background(), greeting{Channels: []string{"a"}}, []string{"b"}, user{ID: "1"}))
		assert.Empty(t, f.channels["a"].Calls())
		assert.Len(t, f.channels["b"].Calls(), 1)
	})

	t.Run("send via with no channels falls back to via", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		require.NoError(t, f.dispatcher.SendVia(context.Background(), greeting{Channels: []string{"a"}}, nil, user{ID: "1"}))
		assert.Len(t, f.channels["a"].Calls(), 1)
	})

	t.Run("send now ignores queueable marker", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		require.NoError(t, f.dispatcher.SendNow(context.Background(), reminder{Channels: []string{"a"}}, user{ID: "1"}))

		calls := f.channels["a"].Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "reminder", calls[0].Message.Type)
	})

	t.Run("nil recipients are dropped", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		require.NoError(t, f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a"}}, nil, user{ID: "1"}, nil))
		assert.Len(t, f.channels["a"].Calls(), 1)
	})

	t.Run("for locale copies the dispatcher", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		require.NoError(t, f.dispatcher.ForLocale("uk").Send(context.Background(), greeting{Channels: []string{"a"}}, user{ID: "1", Lang: "fr"}))
		require.NoError(t, f.dispatcher.Send(context.Background(), greeting{Channels: []string{"a"}}, user{ID: "1", Lang: "fr"}))

		calls := f.channels["a"].Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, "uk", calls[0].Locale)
		assert.Equal(t, "fr", calls[1].Locale)
	})
}

func TestParseFailurePolicy(t *testing.T) {
	t.Parallel()

	p, err := notifications.ParseFailurePolicy("continue")
	require.NoError(t, err)
	assert.Equal(t, notifications.ContinueOnFailure, p)
	assert.Equal(t, "continue", p.String())

	p, err = notifications.ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, notifications.AbortOnFailure, p)

	_, err = notifications.ParseFailurePolicy("retry")
	require.ErrorIs(t, err, notifications.ErrInvalidFailurePolicy)
}
