package main

import (
	"cmp"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/notificationhttp"
	"github.com/dmitrymomot/notifykit/pkg/validator"
)

// app is everything the HTTP surface needs.
type app struct {
	dispatcher *notifications.Dispatcher
	manager    *notifications.Manager
	stream     *notifications.BroadcastChannel
	directory  *directory
	checks     []httpserver.Check
	apiToken   string
	logger     *slog.Logger
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/livez", httpserver.HealthHandler(a.logger, time.Second))
	r.Get("/readyz", httpserver.HealthHandler(a.logger, 2*time.Second, a.checks...))

	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)
		r.Post("/notifications", a.notify)

		feed := notificationhttp.NewHandler(a.manager, a.feedOwner,
			notificationhttp.WithStream(a.stream),
			notificationhttp.WithLogger(a.logger),
		)
		r.Mount("/users/{user}/notifications", feed.Handle())
	})
	return r
}

// authenticate requires the bearer token when one is configured.
func (a *app) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.apiToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(a.apiToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *app) feedOwner(r *http.Request) (notifications.Recipient, error) {
	key := chi.URLParam(r, "user")
	if key == "" {
		return nil, notifications.ErrRecipientNotFound
	}
	return notifications.Identity{Type: subscriberType, Key: key}, nil
}

type notifyRequest struct {
	Recipients   []subscriber      `json:"recipients"`
	Routes       map[string]string `json:"routes"`
	Notification announcement      `json:"notification"`
}

type notifyResponse struct {
	Status     string `json:"status"`
	Recipients int    `json:"recipients"`
}

var (
	levels = []notifications.Level{
		notifications.LevelInfo,
		notifications.LevelSuccess,
		notifications.LevelWarning,
		notifications.LevelError,
	}
	webSchemes = []string{"http", "https"}
)

func (req notifyRequest) validate() error {
	n := req.Notification
	rules := []validator.Rule{
		validator.Required("notification.title", n.Title),
		validator.MaxLen("notification.title", n.Title, 255),
		validator.RequiredSlice("notification.channels", n.Channels),
		validator.Check("recipients", func() bool {
			return len(req.Recipients) > 0 || len(req.Routes) > 0
		}, "recipients or routes required", "validation.required"),
	}
	rules = append(rules, validator.When(n.Level != "",
		validator.ValidEnum("notification.level", n.Level, levels))...)
	rules = append(rules, validator.When(n.URL != "",
		validator.ValidURLWithScheme("notification.url", n.URL, webSchemes))...)

	for i, s := range req.Recipients {
		prefix := "recipients." + cmp.Or(s.ID, strconv.Itoa(i))
		rules = append(rules, validator.Required(prefix+".id", s.ID))
		rules = append(rules, validator.When(s.Email != "", addressRule(prefix+".email", s.Email))...)
		rules = append(rules, validator.When(s.Webhook != "",
			validator.ValidURLWithScheme(prefix+".webhook", s.Webhook, webSchemes))...)
	}
	if addr, ok := req.Routes[notifications.DriverMail]; ok {
		rules = append(rules, addressRule("routes.mail", addr))
	}
	if addr, ok := req.Routes[notifications.DriverWebhook]; ok {
		rules = append(rules, validator.ValidURLWithScheme("routes.webhook", addr, webSchemes))
	}
	return validator.Apply(rules...)
}

func addressRule(field, addr string) validator.Rule {
	return validator.Check(field, func() bool { return email.IsValidAddress(addr) },
		"invalid address", "validation.email")
}

// notify dispatches one announcement to the listed subscribers and, when
// routes are given, to an on-demand recipient.
func (a *app) notify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if errs := validator.ExtractValidationErrors(req.validate()); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation_failed",
			"fields": errs.Map(),
		})
		return
	}

	recipients := make([]notifications.Recipient, 0, len(req.Recipients)+1)
	for _, s := range req.Recipients {
		a.directory.remember(s)
		recipients = append(recipients, s)
	}
	if len(req.Routes) > 0 {
		recipients = append(recipients, notifications.Routes(req.Routes))
	}

	ctx := r.Context()
	if err := a.dispatcher.Send(ctx, req.Notification, recipients...); err != nil {
		status, code := http.StatusBadGateway, "delivery_failed"
		if notifications.IsConfigurationError(err) {
			status, code = http.StatusBadRequest, "invalid_channel"
		}
		a.logger.LogAttrs(ctx, slog.LevelWarn, "notification dispatch failed",
			logger.NotificationType(notifications.TypeOf(req.Notification)),
			logger.Error(err),
		)
		writeError(w, status, code, err.Error())
		return
	}

	resp := notifyResponse{Status: "sent", Recipients: len(recipients)}
	status := http.StatusOK
	if req.Notification.ShouldQueue() {
		resp.Status = "queued"
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAttrs(r.Context(), slog.LevelDebug, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				logger.Duration(time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
