package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// execute runs one admitted task to a terminal state and then gives its slot
// back. ctx is cancelled by Cancel or Shutdown; an optional job deadline is
// layered on top so the two can be told apart.
func (q *TaskQueue) execute(ctx context.Context, cancel context.CancelFunc, t *Task, runner JobRunner) {
	defer q.wg.Done()
	defer cancel()

	logger := q.logger.With("task_id", t.ID(), "task_kind", t.Kind())

	defer func() {
		q.mu.Lock()
		delete(q.running, t.ID())
		q.admitLocked()
		q.mu.Unlock()
	}()

	runCtx := ctx
	if q.jobTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(ctx, q.jobTimeout)
		defer cancelTimeout()
	}

	logger.Info("task started")
	progress := &taskProgress{task: t, notify: q.observers.notify}
	result, err := runSafely(runCtx, runner, t.Parameters(), progress)

	changed := q.settle(ctx, runCtx, t, result, err, logger)
	if changed {
		q.observers.notify(ChangeStatus, t)
	}
}

// settle applies the outcome of a run. Terminal states are absorbing, so a
// task already cancelled by the queue keeps that status whatever the runner
// returned.
func (q *TaskQueue) settle(
	ctx, runCtx context.Context,
	t *Task,
	result Result,
	err error,
	logger *slog.Logger,
) bool {
	elapsed, _ := t.Elapsed()

	switch {
	case err == nil:
		if !t.Complete(result) {
			return false
		}
		logger.Info("task completed", "duration", elapsed)
		return true

	case ctx.Err() != nil:
		if !t.Cancel() {
			return false
		}
		logger.Info("task cancelled", "duration", elapsed)
		return true

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		msg := fmt.Sprintf("job exceeded deadline of %s", q.jobTimeout)
		if !t.Fail(msg) {
			return false
		}
		logger.Warn("task timed out", "timeout", q.jobTimeout, "duration", elapsed)
		return true

	default:
		if !t.Fail(err.Error()) {
			return false
		}
		logger.Error("task failed", "error", err, "duration", elapsed)
		return true
	}
}

// runSafely invokes the runner and converts a panic into an error.
func runSafely(ctx context.Context, runner JobRunner, params Parameters, progress Progress) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("runner panicked: %v", r)
		}
	}()
	return runner.Run(ctx, params, progress)
}

