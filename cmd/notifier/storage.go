package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/mongostore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/pgstore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/redisstore"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/redis"
)

// backend is an opened notification store with its probes and cleanup.
type backend struct {
	storage notifications.Storage
	checks  []httpserver.Check
	close   func(context.Context) error
	// prune is set for stores that need explicit retention sweeps.
	prune func(ctx context.Context) (int, error)
}

func openStorage(ctx context.Context, app appConfig, log *slog.Logger) (*backend, error) {
	noop := func(context.Context) error { return nil }

	switch app.Storage {
	case "", "memory":
		return &backend{storage: notifications.NewMemoryStorage(), close: noop}, nil

	case "postgres":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, fmt.Errorf("load postgres config: %w", err)
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		store := pgstore.New(pool)
		b := &backend{
			storage: store,
			checks:  []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}
		if app.Retention > 0 {
			b.prune = func(ctx context.Context) (int, error) { return store.Prune(ctx, app.Retention) }
		}
		return b, nil

	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, fmt.Errorf("load redis config: %w", err)
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			storage: redisstore.New(client, redisstore.WithTTL(app.Retention)),
			checks:  []httpserver.Check{{Name: "redis", Fn: redis.Healthcheck(client)}},
			close:   func(context.Context) error { return client.Close() },
		}, nil

	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, fmt.Errorf("load mongo config: %w", err)
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store, err := mongostore.New(ctx, db, mongostore.WithRetention(app.Retention))
		if err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, err
		}
		return &backend{
			storage: store,
			checks:  []httpserver.Check{{Name: "mongo", Fn: mongo.Healthcheck(db.Client())}},
			close:   db.Client().Disconnect,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage %q: want memory, postgres, redis or mongo", app.Storage)
}

// runPruner sweeps expired notifications every interval until ctx is done.
func runPruner(ctx context.Context, b *backend, interval time.Duration, log *slog.Logger) func() error {
	return func() error {
		if b.prune == nil {
			return nil
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			n, err := b.prune(ctx)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "failed to prune notifications", logger.Error(err))
				continue
			}
			if n > 0 {
				log.LogAttrs(ctx, slog.LevelInfo, "notifications pruned", slog.Int("count", n))
			}
		}
	}
}
