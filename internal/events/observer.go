package events

import (
	"context"
	"log/slog"

	"github.com/aiadmin/ai-admin/internal/task"
)

// TaskObserver forwards queue changes to an emitter. The queue calls
// observers under its lock, so the emitter should be an AsyncEmitter.
type TaskObserver struct {
	emitter EventEmitter
	logger  *slog.Logger
}

// NewTaskObserver creates an observer that emits to emitter.
func NewTaskObserver(emitter EventEmitter, logger *slog.Logger) *TaskObserver {
	return &TaskObserver{
		emitter: emitter,
		logger:  logger.With("component", "task_observer"),
	}
}

// TaskChanged implements task.Observer.
func (o *TaskObserver) TaskChanged(change task.Change) {
	event := NewTaskEvent(TypeFor(change.Type), change.Task)
	if err := o.emitter.EmitEvent(context.Background(), event); err != nil {
		o.logger.Debug("task event not emitted",
			"error", err,
			"event_type", event.Type,
			"task_id", event.TaskID)
	}
}
