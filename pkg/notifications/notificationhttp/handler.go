package notificationhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// RecipientFunc resolves the recipient whose feed a request reads, usually
// from the authenticated session. Returning an error answers 401.
type RecipientFunc func(r *http.Request) (notifications.Recipient, error)

// Handler serves a recipient's notification feed over HTTP.
type Handler struct {
	manager   *notifications.Manager
	recipient RecipientFunc
	stream    *notifications.BroadcastChannel
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithStream enables GET /stream, which follows the recipient's broadcast
// topic as datastar signal patches.
func WithStream(ch *notifications.BroadcastChannel) Option {
	return func(h *Handler) {
		h.stream = ch
	}
}

// WithLogger sets the logger for the Handler.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a feed handler. manager must have a storage.
func NewHandler(manager *notifications.Manager, recipient RecipientFunc, opts ...Option) *Handler {
	h := &Handler{
		manager:   manager,
		recipient: recipient,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle returns the feed routes, ready to be mounted:
//
//	r.Mount("/notifications", notificationhttp.NewHandler(manager, currentUser).Handle())
func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.unread)
	r.Get("/read", h.read)
	r.Get("/count", h.count)
	r.Post("/read-all", h.markAllRead)
	if h.stream != nil {
		r.Get("/stream", h.streamFeed)
	}
	r.Get("/{id}", h.show)
	r.Post("/{id}/read", h.markRead)
	return r
}

type feedResponse struct {
	Notifications []notifications.Record `json:"notifications"`
}

type countResponse struct {
	Unread int `json:"unread"`
}

type updatedResponse struct {
	Updated int `json:"updated"`
}

func (h *Handler) unread(w http.ResponseWriter, r *http.Request) {
	rcpt, ok := h.resolve(w, r)
	if !ok {
		return
	}
	recs, err := h.manager.Unread(r.Context(), rcpt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{Notifications: nonNil(recs)})
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) {
	rcpt, ok := h.resolve(w, r)
	if !ok {
		return
	}
	recs, err := h.manager.Read(r.Context(), rcpt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{Notifications: nonNil(recs)})
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	rcpt, ok := h.resolve(w, r)
	if !ok {
		return
	}
	n, err := h.manager.CountUnread(r.Context(), rcpt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Unread: n})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.owned(w, r)
	if !ok {
		return
	}
	if _, err := h.manager.MarkAsRead(r.Context(), rec.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	rcpt, ok := h.resolve(w, r)
	if !ok {
		return
	}
	n, err := h.manager.MarkAllAsRead(r.Context(), rcpt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updatedResponse{Updated: n})
}

func (h *Handler) streamFeed(w http.ResponseWriter, r *http.Request) {
	rcpt, ok := h.resolve(w, r)
	if !ok {
		return
	}
	id, identified := notifications.IdentityOf(rcpt)
	if !identified {
		writeError(w, http.StatusUnauthorized, "unauthorized", "recipient has no feed")
		return
	}

	ctx := r.Context()
	sub := h.stream.Subscribe(ctx, notifications.TopicFor(id))
	defer func() { _ = sub.Close() }()

	sse := datastar.NewSSE(w, r)
	h.logger.LogAttrs(ctx, slog.LevelDebug, "notification stream opened",
		logger.Recipient(id.Type, id.Key),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Receive():
			if !ok {
				return
			}
			unread, err := h.manager.CountUnread(ctx, rcpt)
			if err != nil {
				h.logger.LogAttrs(ctx, slog.LevelWarn, "failed to count unread notifications",
					logger.Recipient(id.Type, id.Key),
					logger.Error(err),
				)
			}
			signals, err := json.Marshal(map[string]any{
				"notification": msg.Data,
				"unread":       unread,
			})
			if err != nil {
				h.logger.LogAttrs(ctx, slog.LevelError, "failed to encode notification",
					logger.NotificationID(msg.Data.ID),
					logger.Error(err),
				)
				continue
			}
			if err := sse.PatchSignals(signals); err != nil {
				return
			}
		}
	}
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (notifications.Recipient, bool) {
	rcpt, err := h.recipient(r)
	if err != nil || rcpt == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "recipient required")
		return nil, false
	}
	return rcpt, true
}

// owned loads the {id} record and checks it belongs to the request's
// recipient. Records of other owners answer 404.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (*notifications.Record, bool) {
	rcpt, ok := h.resolve(w, r)
	if !ok {
		return nil, false
	}
	owner, identified := notifications.IdentityOf(rcpt)
	if !identified {
		writeError(w, http.StatusUnauthorized, "unauthorized", "recipient has no feed")
		return nil, false
	}

	rec, err := h.manager.Notification(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, notifications.ErrRecordNotFound) || (err == nil && rec.Owner() != owner) {
		writeError(w, http.StatusNotFound, "not_found", "notification not found")
		return nil, false
	}
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return rec, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, notifications.ErrAnonymousRecipient) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "recipient has no feed")
		return
	}
	h.logger.LogAttrs(r.Context(), slog.LevelError, "notification feed request failed",
		slog.String("path", r.URL.Path),
		logger.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": msg,
	})
}

func nonNil(recs []notifications.Record) []notifications.Record {
	if recs == nil {
		return []notifications.Record{}
	}
	return recs
}
