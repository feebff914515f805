package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository persists or publishes new tasks.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer builds tasks from payloads and hands them to a repository.
type Enqueuer struct {
	repo            EnqueuerRepository
	defaultQueue    string
	defaultPriority Priority
	now             func() time.Time
}

// NewEnqueuer creates an Enqueuer backed by repo.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue:    DefaultQueueName,
		defaultPriority: PriorityDefault,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:            repo,
		defaultQueue:    options.defaultQueue,
		defaultPriority: options.defaultPriority,
		now:             time.Now,
	}, nil
}

// Enqueue marshals payload to JSON and stores it as a pending task.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:      e.defaultQueue,
		priority:   e.defaultPriority,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(options)
	}
	if !options.priority.Valid() {
		return ErrInvalidPriority
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, fmt.Errorf("%T: %w", payload, err))
	}

	name := options.taskName
	if name == "" {
		name = TaskNameOf(payload)
	}

	now := e.now()
	scheduledAt := now.Add(options.delay)
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	}

	task := &Task{
		ID:          uuid.New(),
		Queue:       options.queue,
		TaskName:    name,
		Payload:     body,
		Status:      TaskStatusPending,
		Priority:    options.priority,
		MaxRetries:  options.maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("enqueue %q to %q: %w", task.TaskName, task.Queue, err)
	}
	return nil
}
