package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func newTask(q string, p queue.Priority, scheduledAt time.Time) *queue.Task {
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       q,
		TaskName:    "t",
		Status:      queue.TaskStatusPending,
		Priority:    p,
		MaxRetries:  1,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
}

func TestMemoryStorage_ClaimOrder(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage(0)
	defer ms.Close()
	ctx := context.Background()
	now := time.Now()

	low := newTask("a", queue.PriorityLow, now.Add(-2*time.Second))
	highOld := newTask("a", queue.PriorityHigh, now.Add(-2*time.Second))
	highNew := newTask("a", queue.PriorityHigh, now.Add(-time.Second))
	future := newTask("a", queue.PriorityMax, now.Add(time.Hour))
	other := newTask("b", queue.PriorityMax, now.Add(-time.Hour))
	for _, task := range []*queue.Task{low, highOld, highNew, future, other} {
		require.NoError(t, ms.CreateTask(ctx, task))
	}
	assert.Error(t, ms.CreateTask(ctx, low))

	worker := uuid.New()
	var order []uuid.UUID
	for {
		task, err := ms.ClaimTask(ctx, worker, []string{"a"}, time.Minute)
		if err != nil {
			assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
			break
		}
		assert.Equal(t, queue.TaskStatusProcessing, task.Status)
		assert.Equal(t, worker, *task.LockedBy)
		order = append(order, task.ID)
	}
	assert.Equal(t, []uuid.UUID{highOld.ID, highNew.ID, low.ID}, order)
}

func TestMemoryStorage_Lifecycle(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage(0)
	defer ms.Close()
	ctx := context.Background()

	task := newTask("a", queue.PriorityDefault, time.Now())
	require.NoError(t, ms.CreateTask(ctx, task))
	assert.ErrorIs(t, ms.CompleteTask(ctx, task.ID), queue.ErrTaskNotClaimed)
	assert.ErrorIs(t, ms.CompleteTask(ctx, uuid.New()), queue.ErrTaskNotFound)

	_, err := ms.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, ms.ExtendLock(ctx, task.ID, time.Hour))
	require.NoError(t, ms.FailTask(ctx, task.ID, "first"))

	stored, ok := ms.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, queue.TaskStatusPending, stored.Status)
	assert.Equal(t, int8(1), stored.RetryCount)

	_, err = ms.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, ms.FailTask(ctx, task.ID, "second"))
	stored, _ = ms.Task(task.ID)
	assert.Equal(t, queue.TaskStatusFailed, stored.Status)

	require.NoError(t, ms.MoveToDLQ(ctx, task.ID))
	_, ok = ms.Task(task.ID)
	assert.False(t, ok)
	dlq := ms.DeadLetters()
	require.Len(t, dlq, 1)
	assert.Equal(t, task.ID, dlq[0].TaskID)
	assert.Equal(t, "second", dlq[0].Error)
}

func TestMemoryStorage_ExpiredLockReleased(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage(0)
	defer ms.Close()
	ctx := context.Background()

	task := newTask("a", queue.PriorityDefault, time.Now())
	require.NoError(t, ms.CreateTask(ctx, task))
	_, err := ms.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		stored, _ := ms.Task(task.ID)
		return stored.Status == queue.TaskStatusPending
	}, 3*time.Second, 50*time.Millisecond)
	assert.Len(t, ms.Tasks(queue.TaskStatusPending), 1)
}
