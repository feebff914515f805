package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// transport is the selected queue backend: an enqueuer for the dispatcher
// and a runner that consumes jobs until ctx is done.
type transport struct {
	enqueuer *queue.Enqueuer
	run      func(ctx context.Context, handlers ...queue.Handler) error
	close    func() error
}

func openQueue(cfg queue.Config, log *slog.Logger) (*transport, error) {
	defaultQueue := "notifications"
	if len(cfg.Queues) > 0 && !slices.Contains(cfg.Queues, defaultQueue) {
		defaultQueue = cfg.Queues[0]
	}

	switch cfg.Driver {
	case "", "memory":
		repo := queue.NewMemoryStorage(30 * time.Second)
		enq, err := queue.NewEnqueuer(repo, queue.WithDefaultQueue(defaultQueue))
		if err != nil {
			return nil, err
		}
		return &transport{
			enqueuer: enq,
			run: func(ctx context.Context, handlers ...queue.Handler) error {
				w, err := queue.NewWorker(repo, queue.FromConfig(cfg), queue.WithWorkerLogger(log))
				if err != nil {
					return err
				}
				w.RegisterHandlers(handlers...)
				return w.Run(ctx)()
			},
			close: repo.Close,
		}, nil

	case "amqp":
		conn, err := queue.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPPrefetch)
		if err != nil {
			return nil, err
		}
		repo, err := queue.NewAMQPRepository(conn.Channel, cfg.AMQPExchange)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		enq, err := queue.NewEnqueuer(repo, queue.WithDefaultQueue(defaultQueue))
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return &transport{
			enqueuer: enq,
			run: func(ctx context.Context, handlers ...queue.Handler) error {
				consumer, err := queue.NewAMQPConsumer(conn.Channel, cfg.AMQPExchange,
					queue.WithAMQPLogger(log),
					queue.WithAMQPConcurrency(cfg.MaxConcurrentTasks),
				)
				if err != nil {
					return err
				}
				consumer.RegisterHandlers(handlers...)

				g, ctx := errgroup.WithContext(ctx)
				for _, name := range cfg.Queues {
					deliveries, err := conn.Deliveries(name)
					if err != nil {
						return err
					}
					g.Go(func() error { return consumer.Consume(ctx, deliveries) })
				}
				return g.Wait()
			},
			close: conn.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown queue driver %q: want memory or amqp", cfg.Driver)
}
