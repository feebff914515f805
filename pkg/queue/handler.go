package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes the payload of tasks whose TaskName equals Name.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// TaskHandlerFunc handles a decoded payload of type T.
type TaskHandlerFunc[T any] func(ctx context.Context, payload T) error

// NewTaskHandler binds fn to the task name derived from T, matching what
// Enqueue produces for a T payload.
func NewTaskHandler[T any](fn TaskHandlerFunc[T]) Handler {
	var zero T
	return NewNamedTaskHandler(TaskNameOf(zero), fn)
}

// NewNamedTaskHandler binds fn to an explicit task name.
func NewNamedTaskHandler[T any](name string, fn TaskHandlerFunc[T]) Handler {
	return &typedHandler[T]{name: name, fn: fn}
}

type typedHandler[T any] struct {
	name string
	fn   TaskHandlerFunc[T]
}

func (h *typedHandler[T]) Name() string { return h.name }

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("decode %s payload: %w", h.name, err)
	}
	return h.fn(ctx, v)
}
