// Command notifier runs the notification service: an HTTP ingress that fans
// announcements out to the configured channels, the per-user feed API and
// the queue worker for deferred deliveries.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/i18n"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("notifier stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(s.app.Env, s.app.Service),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
		logger.WithContextExtractors(i18n.LogExtractor),
	)
	logger.SetAsDefault(log)

	store, err := openStorage(ctx, s.app, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.close(context.WithoutCancel(ctx)); err != nil {
			log.LogAttrs(ctx, slog.LevelError, "failed to close storage", logger.Error(err))
		}
	}()

	tr, err := openQueue(s.queue, log)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer func() { _ = tr.close() }()

	broadcaster := broadcast.NewMemoryBroadcaster[notifications.Broadcast](
		s.notifications.BroadcastBuffer,
		broadcast.WithReplay(s.notifications.BroadcastTopics, s.notifications.BroadcastReplay),
	)
	defer func() { _ = broadcaster.Close() }()
	stream := notifications.NewBroadcastChannel(broadcaster)

	registry, err := newRegistry(ctx, s, store.storage, stream, log)
	if err != nil {
		return err
	}

	policy, err := notifications.ParseFailurePolicy(s.notifications.FailurePolicy)
	if err != nil {
		return err
	}
	events := notifications.NewEvents()
	events.On(notifications.EventFailed, func(ctx context.Context, e *notifications.Event) {
		log.LogAttrs(ctx, slog.LevelError, "notification delivery failed",
			logger.NotificationID(e.Message.ID),
			logger.NotificationType(e.Message.Type),
			logger.Channel(e.Channel),
			logger.Error(e.Err),
		)
	})

	dispatcher := notifications.NewDispatcher(registry,
		notifications.WithDefaultConnection(s.notifications.Connection),
		notifications.WithEnqueuer(tr.enqueuer),
		notifications.WithFailurePolicy(policy),
		notifications.WithLocale(s.notifications.Locale),
		notifications.WithEvents(events),
		notifications.WithDispatcherLogger(log),
	)

	dir := newDirectory(s.app.Recipients)
	types := notifications.NewTypeRegistry()
	notifications.RegisterType[announcement](types)

	a := &app{
		dispatcher: dispatcher,
		manager:    notifications.NewManager(dispatcher, store.storage, notifications.WithManagerLogger(log)),
		stream:     stream,
		directory:  dir,
		checks:     store.checks,
		apiToken:   s.app.APIToken,
		logger:     log,
	}
	srv := httpserver.NewFromConfig(s.http, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, a.routes()) })
	g.Go(func() error {
		return tr.run(ctx, notifications.NewQueueHandler(dispatcher, dir, types))
	})
	g.Go(runPruner(ctx, store, s.app.PruneInterval, log))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newRegistry registers the built-in drivers and the named channels of the
// channels file.
func newRegistry(ctx context.Context, s settings, storage notifications.Storage, stream *notifications.BroadcastChannel, log *slog.Logger) (*notifications.Registry, error) {
	registry := notifications.NewRegistry()
	registry.Register(notifications.DriverDatabase, notifications.DatabaseDriver(storage))
	registry.Set(notifications.DriverBroadcast, stream)
	registry.Register(notifications.DriverWebhook, notifications.WebhookDriver(
		webhook.NewSender(webhook.WithSenderLogger(log)),
	))

	if s.app.MailEnabled {
		sender, opts, err := newMailer(ctx, s.app, log)
		if err != nil {
			return nil, err
		}
		registry.Register(notifications.DriverMail, notifications.MailDriver(sender, opts...))
	}

	if s.notifications.ChannelsFile != "" {
		configs, err := notifications.LoadChannelConfigs(s.notifications.ChannelsFile)
		if err != nil {
			return nil, err
		}
		registry.Configure(configs)
	}
	return registry, nil
}

// newMailer sends through Postmark when both tokens are set and writes
// messages to disk otherwise.
func newMailer(ctx context.Context, app appConfig, log *slog.Logger) (email.EmailSender, []notifications.MailChannelOption, error) {
	var cfg email.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, fmt.Errorf("load email config: %w", err)
	}

	opts := []notifications.MailChannelOption{notifications.WithMailLogger(log)}
	if app.TranslationsDir != "" {
		translator, err := i18n.NewTranslator(ctx,
			i18n.NewFSAdapter(os.DirFS(app.TranslationsDir), "."),
			i18n.WithDefaultLanguage(app.DefaultLanguage),
			i18n.WithLogger(log),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("load translations: %w", err)
		}
		opts = append(opts, notifications.WithMailTranslator(translator))
	}

	if !cfg.PostmarkEnabled() {
		log.LogAttrs(ctx, slog.LevelInfo, "postmark not configured, writing mail to disk",
			slog.String("dir", cfg.DevOutputDir),
		)
		return email.NewDevSender(cfg.DevOutputDir), opts, nil
	}
	sender, err := email.NewPostmarkClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sender, opts, nil
}
