package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aiadmin/ai-admin/internal/task"
	"github.com/google/uuid"
)

// Type names a lifecycle change.
type Type string

// Event types
const (
	TypeTaskSubmitted Type = "task.submitted"
	TypeTaskProgress  Type = "task.progress"
	TypeTaskStatus    Type = "task.status"
	TypeTaskEvicted   Type = "task.evicted"
)

// Durable reports whether events of this type must reach every sink. Status
// and eviction events carry a task's final state; submitted and progress
// events are superseded by later ones.
func (t Type) Durable() bool {
	return t == TypeTaskStatus || t == TypeTaskEvicted
}

// TypeFor maps a queue change to its event type.
func TypeFor(ct task.ChangeType) Type {
	switch ct {
	case task.ChangeSubmitted:
		return TypeTaskSubmitted
	case task.ChangeProgress:
		return TypeTaskProgress
	case task.ChangeEvicted:
		return TypeTaskEvicted
	default:
		return TypeTaskStatus
	}
}

// TaskEvent describes one change to one task.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	Type     Type            `json:"type"`
	TaskID   string          `json:"task_id"`
	Kind     task.Kind       `json:"task_type"`
	Status   task.TaskStatus `json:"status"`
	Progress int             `json:"progress"`
	Step     string          `json:"current_step,omitempty"`

	// Task is the full snapshot taken when the change happened
	Task task.Snapshot `json:"task"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates an event for snap.
func NewTaskEvent(eventType Type, snap task.Snapshot) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		TaskID:     snap.ID,
		Kind:       snap.Kind,
		Status:     snap.Status,
		Progress:   snap.Progress,
		Step:       snap.CurrentStep,
		Task:       snap,
		OccurredAt: time.Now().UTC(),
	}
}

// Marshal encodes the event as JSON.
func (e *TaskEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
