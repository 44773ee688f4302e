package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testKind Kind = "test_job"

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// controlledRunner blocks each job, keyed by its "name" parameter, until the
// test releases it or the job context is cancelled.
type controlledRunner struct {
	mu       sync.Mutex
	releases map[string]chan error
	started  chan string
}

func newControlledRunner() *controlledRunner {
	return &controlledRunner{
		releases: make(map[string]chan error),
		started:  make(chan string, 64),
	}
}

func (r *controlledRunner) gate(name string) chan error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.releases[name]
	if !ok {
		ch = make(chan error, 1)
		r.releases[name] = ch
	}
	return ch
}

func (r *controlledRunner) release(name string, err error) {
	r.gate(name) <- err
}

func (r *controlledRunner) Run(ctx context.Context, params Parameters, progress Progress) (Result, error) {
	name := params.String("name", "")
	r.started <- name
	progress.Advance(10, "waiting for release")

	select {
	case err := <-r.gate(name):
		if err != nil {
			return nil, err
		}
		return Result{"name": name}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestQueue(t *testing.T, maxConcurrent int, runner JobRunner, opts ...Option) *TaskQueue {
	t.Helper()
	registry := NewRegistry()
	require.NoError(t, registry.Register(testKind, runner))

	q := NewTaskQueue(registry, QueueConfig{MaxConcurrent: maxConcurrent}, setupTestLogger(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}

func submitNamed(t *testing.T, q *TaskQueue, name string) string {
	t.Helper()
	id, err := q.Submit(NewTask(testKind, Parameters{"name": name}))
	require.NoError(t, err)
	return id
}

func requireStatus(t *testing.T, q *TaskQueue, id string, want TaskStatus) {
	t.Helper()
	s, ok := q.Get(id)
	require.True(t, ok, "task %s not found", id)
	require.Equal(t, want, s.Status, "task %s", id)
}

func waitForStatus(t *testing.T, q *TaskQueue, id string, want TaskStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := q.Get(id)
		return ok && s.Status == want
	}, 2*time.Second, 5*time.Millisecond, "task %s never reached %s", id, want)
}
