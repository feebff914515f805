package notificationhttp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/notificationhttp"
)

type alert struct {
	notifications.Meta
	Title string
}

func (alert) Via(notifications.Recipient) []string {
	return []string{notifications.DriverDatabase, notifications.DriverBroadcast}
}

func (a alert) ToDatabase(context.Context, notifications.Recipient) (map[string]any, error) {
	return map[string]any{"title": a.Title}, nil
}

func (a alert) ToBroadcast(context.Context, notifications.Recipient) (map[string]any, error) {
	return map[string]any{"title": a.Title}, nil
}

type fixture struct {
	manager     *notifications.Manager
	broadcaster *broadcast.MemoryBroadcaster[notifications.Broadcast]
	server      *httptest.Server
}

// currentUser reads the recipient from the X-User header.
func currentUser(r *http.Request) (notifications.Recipient, error) {
	key := r.Header.Get("X-User")
	if key == "" {
		return nil, errors.New("no user")
	}
	return notifications.Identity{Type: "users", Key: key}, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	storage := notifications.NewMemoryStorage()
	b := broadcast.NewMemoryBroadcaster[notifications.Broadcast](8)
	t.Cleanup(func() { _ = b.Close() })
	stream := notifications.NewBroadcastChannel(b)

	registry := notifications.NewRegistry()
	registry.Register(notifications.DriverDatabase, notifications.DatabaseDriver(storage))
	registry.Set(notifications.DriverBroadcast, stream)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := notifications.NewDispatcher(registry, notifications.WithDispatcherLogger(log))
	manager := notifications.NewManager(dispatcher, storage)

	h := notificationhttp.NewHandler(manager, currentUser,
		notificationhttp.WithStream(stream),
		notificationhttp.WithLogger(log),
	)
	srv := httptest.NewServer(h.Handle())
	t.Cleanup(srv.Close)

	return &fixture{manager: manager, broadcaster: b, server: srv}
}

func (f *fixture) notify(t *testing.T, key, title string) {
	t.Helper()
	err := f.manager.Notify(context.Background(), notifications.Identity{Type: "users", Key: key}, alert{Title: title})
	require.NoError(t, err)
}

func (f *fixture) do(t *testing.T, method, path, user string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type feed struct {
	Notifications []notifications.Record `json:"notifications"`
}

func TestFeed(t *testing.T) {
	t.Parallel()

	t.Run("unread and read lists", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notify(t, "1", "first")
		f.notify(t, "1", "second")
		f.notify(t, "2", "other")

		resp := f.do(t, http.MethodGet, "/", "1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
		unread := decode[feed](t, resp)
		require.Len(t, unread.Notifications, 2)
		assert.Equal(t, "second", unread.Notifications[0].Data["title"])

		resp = f.do(t, http.MethodGet, "/read", "1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		read := decode[feed](t, resp)
		assert.NotNil(t, read.Notifications)
		assert.Empty(t, read.Notifications)
	})

	t.Run("count", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notify(t, "1", "first")

		resp := f.do(t, http.MethodGet, "/count", "1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[map[string]int](t, resp)
		assert.Equal(t, 1, got["unread"])
	})

	t.Run("show and mark read", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notify(t, "1", "first")

		unread := decode[feed](t, f.do(t, http.MethodGet, "/", "1"))
		require.Len(t, unread.Notifications, 1)
		id := unread.Notifications[0].ID

		resp := f.do(t, http.MethodGet, "/"+id, "1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		rec := decode[notifications.Record](t, resp)
		assert.Equal(t, id, rec.ID)
		assert.False(t, rec.IsRead())

		resp = f.do(t, http.MethodPost, "/"+id+"/read", "1")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		read := decode[feed](t, f.do(t, http.MethodGet, "/read", "1"))
		require.Len(t, read.Notifications, 1)
		assert.True(t, read.Notifications[0].IsRead())
	})

	t.Run("mark all read", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notify(t, "1", "first")
		f.notify(t, "1", "second")

		resp := f.do(t, http.MethodPost, "/read-all", "1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, decode[map[string]int](t, resp)["updated"])

		got := decode[map[string]int](t, f.do(t, http.MethodGet, "/count", "1"))
		assert.Equal(t, 0, got["unread"])
	})

	t.Run("foreign and missing records are not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notify(t, "2", "other")
		other := decode[feed](t, f.do(t, http.MethodGet, "/", "2"))
		require.Len(t, other.Notifications, 1)
		id := other.Notifications[0].ID

		resp := f.do(t, http.MethodGet, "/"+id, "1")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", decode[map[string]string](t, resp)["error"])

		resp = f.do(t, http.MethodPost, "/"+id+"/read", "1")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = f.do(t, http.MethodGet, "/missing", "1")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		still := decode[feed](t, f.do(t, http.MethodGet, "/", "2"))
		assert.Len(t, still.Notifications, 1)
	})

	t.Run("unauthorized without recipient", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		for _, path := range []string{"/", "/read", "/count", "/stream"} {
			resp := f.do(t, http.MethodGet, path, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		}
	})
}

func TestFeedWithoutStream(t *testing.T) {
	t.Parallel()

	manager := notifications.NewManager(notifications.NewDispatcher(notifications.NewRegistry()), notifications.NewMemoryStorage())
	srv := httptest.NewServer(notificationhttp.NewHandler(manager, currentUser).Handle())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-User", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Without a stream "/stream" is read as a record id.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStream(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-User", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	require.Eventually(t, func() bool {
		return f.broadcaster.Subscribers("users.1") == 1
	}, time.Second, 10*time.Millisecond)

	f.notify(t, "2", "not yours")
	f.notify(t, "1", "hello")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var event, data string
	for data == "" {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}

	assert.Equal(t, "datastar-patch-signals", event)
	assert.Contains(t, data, `"title":"hello"`)
	assert.Contains(t, data, `"unread":1`)
	assert.NotContains(t, data, "not yours")

	cancel()
	require.Eventually(t, func() bool {
		return f.broadcaster.Subscribers("users.1") == 0
	}, time.Second, 10*time.Millisecond)
}
