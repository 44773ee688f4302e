package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskQueue(t *testing.T) {
	logger := setupTestLogger()
	registry := NewRegistry()

	q := NewTaskQueue(registry, DefaultQueueConfig(), logger)
	assert.Equal(t, DefaultMaxConcurrent, q.MaxConcurrent())

	q = NewTaskQueue(registry, QueueConfig{MaxConcurrent: -1}, logger)
	assert.Equal(t, DefaultMaxConcurrent, q.MaxConcurrent(), "negative bound falls back to default")

	q = NewTaskQueue(registry, QueueConfig{MaxConcurrent: 0}, logger)
	assert.Equal(t, 0, q.MaxConcurrent(), "zero is a valid paused queue")
}

func TestTaskQueue_Submit(t *testing.T) {
	runner := newControlledRunner()

	t.Run("rejects nil task", func(t *testing.T) {
		q := newTestQueue(t, 1, runner)
		_, err := q.Submit(nil)
		assert.ErrorIs(t, err, ErrNilTask)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		q := newTestQueue(t, 1, runner)
		_, err := q.Submit(NewTask("no_such_kind", nil))
		assert.ErrorIs(t, err, ErrUnknownKind)
		assert.Empty(t, q.List())
	})

	t.Run("rejects duplicate", func(t *testing.T) {
		q := newTestQueue(t, 0, runner)
		task := NewTask(testKind, nil)
		_, err := q.Submit(task)
		require.NoError(t, err)
		_, err = q.Submit(task)
		assert.ErrorIs(t, err, ErrDuplicateTask)
	})

	t.Run("rejects non-pending task", func(t *testing.T) {
		q := newTestQueue(t, 1, runner)
		task := NewTask(testKind, nil)
		task.Cancel()
		_, err := q.Submit(task)
		assert.ErrorIs(t, err, ErrTaskNotPending)
	})

	t.Run("rejects after shutdown", func(t *testing.T) {
		q := newTestQueue(t, 1, runner)
		require.NoError(t, q.Shutdown(context.Background()))
		_, err := q.Submit(NewTask(testKind, nil))
		assert.ErrorIs(t, err, ErrQueueClosed)
	})

	t.Run("logs admission", func(t *testing.T) {
		q := newTestQueue(t, 0, runner)
		id := submitNamed(t, q, "logged")
		logs, ok := q.Logs(id)
		require.True(t, ok)
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0], "Task added to queue")

		_, ok = q.Logs("missing")
		assert.False(t, ok)
	})
}

func TestTaskQueue_FIFOAdmission(t *testing.T) {
	runner := newControlledRunner()
	q := newTestQueue(t, 1, runner)

	a := submitNamed(t, q, "a")
	requireStatus(t, q, a, TaskStatusRunning)

	b := submitNamed(t, q, "b")
	c := submitNamed(t, q, "c")
	requireStatus(t, q, b, TaskStatusPending)
	requireStatus(t, q, c, TaskStatusPending)

	stats := q.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.CurrentRunning)
	assert.Equal(t, 1, stats.MaxConcurrent)

	runner.release("a", nil)
	waitForStatus(t, q, a, TaskStatusCompleted)
	waitForStatus(t, q, b, TaskStatusRunning)
	requireStatus(t, q, c, TaskStatusPending)

	s, _ := q.Get(a)
	assert.Equal(t, 100, s.Progress)
	assert.Equal(t, "a", s.Result["name"])

	runner.release("b", nil)
	waitForStatus(t, q, c, TaskStatusRunning)
	runner.release("c", nil)
	waitForStatus(t, q, c, TaskStatusCompleted)

	assert.Equal(t, "a", <-runner.started)
	assert.Equal(t, "b", <-runner.started)
	assert.Equal(t, "c", <-runner.started)
}

func TestTaskQueue_CompleteFailComplete(t *testing.T) {
	runner := newControlledRunner()
	q := newTestQueue(t, 1, runner)

	a := submitNamed(t, q, "a")
	b := submitNamed(t, q, "b")
	c := submitNamed(t, q, "c")
	requireStatus(t, q, a, TaskStatusRunning)
	requireStatus(t, q, b, TaskStatusPending)
	requireStatus(t, q, c, TaskStatusPending)

	runner.release("a", nil)
	waitForStatus(t, q, a, TaskStatusCompleted)
	waitForStatus(t, q, b, TaskStatusRunning)
	requireStatus(t, q, c, TaskStatusPending)

	runner.release("b", errors.New("registry unreachable"))
	waitForStatus(t, q, b, TaskStatusFailed)
	waitForStatus(t, q, c, TaskStatusRunning)

	runner.release("c", nil)
	waitForStatus(t, q, c, TaskStatusCompleted)

	require.Eventually(t, func() bool {
		return q.Stats().CurrentRunning == 0
	}, time.Second, 5*time.Millisecond)
	stats := q.Stats()
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Running)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.CurrentRunning)

	failed, _ := q.Get(b)
	assert.Equal(t, "registry unreachable", failed.Error)
	assert.Nil(t, failed.Result)
}

func TestTaskQueue_Cancel(t *testing.T) {
	t.Run("pending task never starts", func(t *testing.T) {
		runner := newControlledRunner()
		q := newTestQueue(t, 1, runner)

		a := submitNamed(t, q, "a")
		d := submitNamed(t, q, "d")
		e := submitNamed(t, q, "e")

		assert.True(t, q.Cancel(d))
		requireStatus(t, q, d, TaskStatusCancelled)

		runner.release("a", nil)
		waitForStatus(t, q, a, TaskStatusCompleted)
		waitForStatus(t, q, e, TaskStatusRunning)

		s, _ := q.Get(d)
		assert.Nil(t, s.StartedAt)
		assert.Equal(t, "a", <-runner.started)
		assert.Equal(t, "e", <-runner.started)
	})

	t.Run("running task frees its slot", func(t *testing.T) {
		runner := newControlledRunner()
		q := newTestQueue(t, 1, runner)

		a := submitNamed(t, q, "a")
		b := submitNamed(t, q, "b")
		<-runner.started

		assert.True(t, q.Cancel(a))
		requireStatus(t, q, a, TaskStatusCancelled)
		requireStatus(t, q, b, TaskStatusRunning)

		// the runner observes ctx cancellation and returns an error; status must not change
		time.Sleep(20 * time.Millisecond)
		requireStatus(t, q, a, TaskStatusCancelled)
		s, _ := q.Get(a)
		assert.Empty(t, s.Error)
	})

	t.Run("terminal and unknown tasks", func(t *testing.T) {
		runner := newControlledRunner()
		q := newTestQueue(t, 1, runner)

		a := submitNamed(t, q, "a")
		runner.release("a", nil)
		waitForStatus(t, q, a, TaskStatusCompleted)

		assert.False(t, q.Cancel(a))
		assert.False(t, q.Cancel("does-not-exist"))
		requireStatus(t, q, a, TaskStatusCompleted)
	})
}

func TestTaskQueue_Failures(t *testing.T) {
	t.Run("runner error", func(t *testing.T) {
		runner := newControlledRunner()
		q := newTestQueue(t, 1, runner)

		a := submitNamed(t, q, "a")
		runner.release("a", errors.New("exit status 1: denied"))
		waitForStatus(t, q, a, TaskStatusFailed)

		s, _ := q.Get(a)
		assert.Equal(t, "exit status 1: denied", s.Error)
		assert.Equal(t, 10, s.Progress, "progress is left where the runner reported it")
		assert.Contains(t, s.Logs[len(s.Logs)-1], "Task failed: exit status 1: denied")
	})

	t.Run("runner panic", func(t *testing.T) {
		panicky := RunnerFunc(func(ctx context.Context, params Parameters, progress Progress) (Result, error) {
			panic("boom")
		})
		q := newTestQueue(t, 1, panicky)

		id, err := q.Submit(NewTask(testKind, nil))
		require.NoError(t, err)
		waitForStatus(t, q, id, TaskStatusFailed)

		s, _ := q.Get(id)
		assert.Contains(t, s.Error, "runner panicked: boom")
		require.Eventually(t, func() bool { return q.Stats().CurrentRunning == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("job deadline", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register(testKind, newControlledRunner()))
		q := NewTaskQueue(registry, QueueConfig{MaxConcurrent: 1, JobTimeout: 30 * time.Millisecond}, setupTestLogger())
		defer func() { _ = q.Shutdown(context.Background()) }()

		id := submitNamed(t, q, "slow")
		waitForStatus(t, q, id, TaskStatusFailed)

		s, _ := q.Get(id)
		assert.Equal(t, "job exceeded deadline of 30ms", s.Error)
	})
}

func TestTaskQueue_ClearTerminal(t *testing.T) {
	runner := newControlledRunner()
	q := newTestQueue(t, 2, runner)

	done := submitNamed(t, q, "done")
	failed := submitNamed(t, q, "failed")
	cancelled := submitNamed(t, q, "cancelled")
	pending := submitNamed(t, q, "pending")

	runner.release("done", nil)
	runner.release("failed", errors.New("nope"))
	waitForStatus(t, q, done, TaskStatusCompleted)
	waitForStatus(t, q, failed, TaskStatusFailed)

	waitForStatus(t, q, cancelled, TaskStatusRunning)
	require.True(t, q.Cancel(cancelled))
	waitForStatus(t, q, pending, TaskStatusRunning)

	assert.Equal(t, 3, q.ClearTerminal())

	for _, id := range []string{done, failed, cancelled} {
		_, ok := q.Get(id)
		assert.False(t, ok)
	}
	requireStatus(t, q, pending, TaskStatusRunning)
	assert.Equal(t, 1, q.Stats().Total)
	assert.Equal(t, 0, q.ClearTerminal())
}

func TestTaskQueue_SetMaxConcurrent(t *testing.T) {
	runner := newControlledRunner()
	q := newTestQueue(t, 0, runner)

	ids := []string{submitNamed(t, q, "a"), submitNamed(t, q, "b"), submitNamed(t, q, "c")}
	for _, id := range ids {
		requireStatus(t, q, id, TaskStatusPending)
	}

	require.NoError(t, q.SetMaxConcurrent(2))
	requireStatus(t, q, ids[0], TaskStatusRunning)
	requireStatus(t, q, ids[1], TaskStatusRunning)
	requireStatus(t, q, ids[2], TaskStatusPending)

	err := q.SetMaxConcurrent(-1)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
	assert.Equal(t, 2, q.MaxConcurrent())

	q.Pause()
	runner.release("a", nil)
	waitForStatus(t, q, ids[0], TaskStatusCompleted)
	requireStatus(t, q, ids[1], TaskStatusRunning)
	requireStatus(t, q, ids[2], TaskStatusPending)

	require.NoError(t, q.Resume(2))
	waitForStatus(t, q, ids[2], TaskStatusRunning)
}

func TestTaskQueue_BoundIsNeverExceeded(t *testing.T) {
	const (
		maxConcurrent = 3
		total         = 24
	)

	var current, peak int64
	runner := RunnerFunc(func(ctx context.Context, params Parameters, progress Progress) (Result, error) {
		n := atomic.AddInt64(&current, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return nil, nil
	})
	q := newTestQueue(t, maxConcurrent, runner)

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.Submit(NewTask(testKind, Parameters{"i": i}))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return q.Stats().Completed == total
	}, 5*time.Second, 5*time.Millisecond)

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(maxConcurrent))
	assert.Len(t, q.ListByStatus(TaskStatusCompleted), total)
}

func TestTaskQueue_ListAndStatus(t *testing.T) {
	runner := newControlledRunner()
	q := newTestQueue(t, 1, runner)

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, submitNamed(t, q, fmt.Sprintf("t%d", i)))
		time.Sleep(time.Millisecond)
	}

	all := q.List()
	require.Len(t, all, 4)
	assert.Equal(t, ids[0], all[0].ID, "list is oldest first")

	assert.Len(t, q.ListByStatus(TaskStatusPending), 3)
	assert.Len(t, q.ListByStatus(TaskStatusRunning), 1)
	assert.Empty(t, q.ListByStatus(TaskStatusFailed))

	status := q.Status(2)
	require.Len(t, status.RecentTasks, 2)
	assert.Equal(t, ids[3], status.RecentTasks[0].ID, "recent tasks are newest first")
	require.Len(t, status.RunningTasks, 1)
	assert.Equal(t, ids[0], status.RunningTasks[0].ID)
	assert.Equal(t, 4, status.Statistics.Total)

	_, ok := q.Get("missing")
	assert.False(t, ok)
}

func TestTaskQueue_Observers(t *testing.T) {
	var mu sync.Mutex
	var changes []Change
	obs := ObserverFunc(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	runner := newControlledRunner()
	q := newTestQueue(t, 1, runner, WithObserver(obs), WithObserver(nil))

	id := submitNamed(t, q, "observed")
	runner.release("observed", nil)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := changes[len(changes)-1]
		return last.Type == ChangeStatus && last.Task.Status == TaskStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
	q.ClearTerminal()

	mu.Lock()
	defer mu.Unlock()

	var types []ChangeType
	var statuses []TaskStatus
	for _, c := range changes {
		assert.Equal(t, id, c.Task.ID)
		types = append(types, c.Type)
		if c.Type == ChangeStatus {
			statuses = append(statuses, c.Task.Status)
		}
	}
	assert.Equal(t, ChangeSubmitted, types[0])
	assert.Contains(t, types, ChangeProgress)
	assert.Equal(t, ChangeEvicted, types[len(types)-1])
	assert.Equal(t, []TaskStatus{TaskStatusRunning, TaskStatusCompleted}, statuses)
}

func TestTaskQueue_Shutdown(t *testing.T) {
	runner := newControlledRunner()
	q := newTestQueue(t, 1, runner)

	running := submitNamed(t, q, "running")
	pending := submitNamed(t, q, "pending")
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	requireStatus(t, q, running, TaskStatusCancelled)
	requireStatus(t, q, pending, TaskStatusCancelled)
	assert.Equal(t, 0, q.Stats().CurrentRunning)

	assert.NoError(t, q.Shutdown(ctx), "shutdown is idempotent")
}
