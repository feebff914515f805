package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// WorkerRepository is the storage side of a polling worker.
type WorkerRepository interface {
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)
	CompleteTask(ctx context.Context, taskID uuid.UUID) error
	FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error
	ExtendLock(ctx context.Context, taskID uuid.UUID, d time.Duration) error
}

// Worker polls a WorkerRepository and dispatches claimed tasks to handlers.
type Worker struct {
	repo     WorkerRepository
	handlers *Handlers
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}

	pullInterval time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker reading from repo.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handlers:     NewHandlers(),
		queues:       options.queues,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		logger:       options.logger.With(logger.Component("queue.worker")),
	}, nil
}

// RegisterHandlers adds task handlers. Later registrations replace earlier
// ones with the same name.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.handlers.Register(handlers...)
}

// Start launches the polling loop. It returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrWorkerStarted
	}
	if w.handlers.Len() == 0 {
		return ErrNoHandlers
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.LogAttrs(ctx, slog.LevelInfo, "worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)),
	)
	return nil
}

// Stop cancels polling and waits for in-flight tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return ErrWorkerStopped
	}
	cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run returns a function for errgroup-style supervision: it starts the
// worker, blocks until ctx is done and then stops it.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		w.drain(ctx)
	}
}

// drain claims due tasks while concurrency slots are free.
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			return
		}

		task, err := w.repo.ClaimTask(ctx, w.workerID, w.queues, w.lockTimeout)
		if err != nil || task == nil {
			<-w.sem
			if err != nil && !errors.Is(err, ErrNoTaskToClaim) && ctx.Err() == nil {
				w.logger.LogAttrs(ctx, slog.LevelError, "failed to claim task", logger.Error(err))
			}
			return
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.process(task)
		}()
	}
}

// process runs with a context detached from the worker so shutdown lets
// in-flight tasks finish.
func (w *Worker) process(task *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	attrs := []slog.Attr{
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		logger.Queue(task.Queue),
	}
	start := time.Now()

	handler, ok := w.handlers.Get(task.TaskName)
	if !ok {
		w.logger.LogAttrs(ctx, slog.LevelError, "no handler registered for task", attrs...)
		w.fail(ctx, task, ErrHandlerNotFound, true)
		return
	}

	err := safeHandle(ctx, handler, task)
	attrs = append(attrs, logger.Duration(time.Since(start)))
	if err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "task failed",
			append(attrs, logger.RetryCount(int(task.RetryCount)), logger.Error(err))...)
		w.fail(ctx, task, err, task.RetryCount >= task.MaxRetries)
		return
	}

	if err := w.repo.CompleteTask(ctx, task.ID); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "failed to complete task", append(attrs, logger.Error(err))...)
		return
	}
	w.logger.LogAttrs(ctx, slog.LevelDebug, "task completed", attrs...)
}

func (w *Worker) fail(ctx context.Context, task *Task, cause error, deadLetter bool) {
	if err := w.repo.FailTask(ctx, task.ID, cause.Error()); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "failed to record task failure",
			slog.String("task_id", task.ID.String()), logger.Error(err))
		return
	}
	if !deadLetter {
		return
	}
	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelError, "failed to move task to dead letter queue",
			slog.String("task_id", task.ID.String()), logger.Error(err))
		return
	}
	w.logger.LogAttrs(ctx, slog.LevelWarn, "task moved to dead letter queue",
		slog.String("task_id", task.ID.String()), slog.String("task_name", task.TaskName))
}

func safeHandle(ctx context.Context, h Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler %s: %v", task.TaskName, r)
		}
	}()
	return h.Handle(ctx, task.Payload)
}

// Handlers is a concurrency-safe handler registry keyed by task name.
type Handlers struct {
	mu sync.RWMutex
	m  map[string]Handler
}

// NewHandlers creates an empty registry.
func NewHandlers() *Handlers {
	return &Handlers{m: make(map[string]Handler)}
}

// Register adds handlers, skipping nil values.
func (h *Handlers) Register(handlers ...Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, handler := range handlers {
		if handler != nil {
			h.m[handler.Name()] = handler
		}
	}
}

// Get returns the handler registered for name.
func (h *Handlers) Get(name string) (Handler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.m[name]
	return handler, ok
}

// Len returns the number of registered handlers.
func (h *Handlers) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.m)
}
