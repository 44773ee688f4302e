package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Kind identifies the job type of a task and selects the JobRunner that executes it.
type Kind string

// logTimeFormat matches the HH:MM:SS prefix of every log line.
const logTimeFormat = "15:04:05"

// Task represents a unit of background work to be processed.
//
// Identity (ID, Kind, Parameters, CreatedAt) is fixed at construction. The
// lifecycle fields are mutated by the queue and by the runner that owns the
// task; readers should use Snapshot.
type Task struct {
	id         string
	kind       Kind
	parameters Parameters
	createdAt  time.Time

	mu          sync.RWMutex
	status      TaskStatus
	startedAt   time.Time
	completedAt time.Time
	progress    int
	currentStep string
	command     string
	logs        []string
	result      Result
	errMsg      string

	// now is swapped in tests
	now func() time.Time
}

// NewTask creates a pending task of the given kind. The parameters map is
// copied so later changes by the caller are not observed by the runner.
func NewTask(kind Kind, params Parameters) *Task {
	t := &Task{
		id:         uuid.New().String(),
		kind:       kind,
		parameters: params.clone(),
		status:     TaskStatusPending,
		now:        time.Now,
	}
	t.createdAt = t.now()
	return t
}

// ID returns the task's unique identifier
func (t *Task) ID() string { return t.id }

// Kind returns the job type
func (t *Task) Kind() Kind { return t.kind }

// Parameters returns a copy of the job-specific inputs. Runners may modify
// the copy without affecting snapshots.
func (t *Task) Parameters() Parameters { return t.parameters.clone() }

// CreatedAt returns the creation time
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// Status returns the current task status
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// AppendLog adds a timestamped line to the task log.
func (t *Task) AppendLog(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLogLocked(message)
}

func (t *Task) appendLogLocked(message string) {
	t.logs = append(t.logs, fmt.Sprintf("[%s] %s", t.now().Format(logTimeFormat), message))
}

// Advance records progress, clamped to [0,100]. A non-empty step becomes the
// current step and is written to the log.
func (t *Task) Advance(progress int, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = clampProgress(progress)
	if step != "" {
		t.currentStep = step
		t.appendLogLocked(fmt.Sprintf("Progress: %d%% - %s", t.progress, step))
	}
}

// SetCommand records the external command line the runner is executing.
func (t *Task) SetCommand(cmdline string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.command = cmdline
}

// Start moves a pending task to running. It returns false if the task was not pending.
func (t *Task) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskStatusPending {
		return false
	}
	t.status = TaskStatusRunning
	t.startedAt = t.now()
	t.appendLogLocked(fmt.Sprintf("Task started: %s", t.kind))
	return true
}

// Complete marks the task completed with the given result.
// It returns false if the task had already reached a terminal state.
func (t *Task) Complete(result Result) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return false
	}
	if len(result) == 0 {
		result = Result{"status": "success"}
	}
	t.status = TaskStatusCompleted
	t.completedAt = t.now()
	t.progress = 100
	t.result = result
	t.appendLogLocked("Task completed successfully")
	return true
}

// Fail marks the task failed. Progress is left untouched.
// It returns false if the task had already reached a terminal state.
func (t *Task) Fail(errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return false
	}
	if errMsg == "" {
		errMsg = "unknown error"
	}
	t.status = TaskStatusFailed
	t.completedAt = t.now()
	t.errMsg = errMsg
	t.appendLogLocked(fmt.Sprintf("Task failed: %s", errMsg))
	return true
}

// Cancel marks a pending or running task cancelled.
// It returns false if the task had already reached a terminal state.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return false
	}
	t.status = TaskStatusCancelled
	t.completedAt = t.now()
	t.appendLogLocked("Task cancelled")
	return true
}

// Elapsed returns the time between start and completion, or until now for a
// running task. The second value is false if the task never started.
func (t *Task) Elapsed() (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.elapsedLocked()
}

func (t *Task) elapsedLocked() (time.Duration, bool) {
	if t.startedAt.IsZero() {
		return 0, false
	}
	end := t.completedAt
	if end.IsZero() {
		end = t.now()
	}
	return end.Sub(t.startedAt), true
}

// Logs returns a copy of the task log.
func (t *Task) Logs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.logs))
	copy(out, t.logs)
	return out
}

// Snapshot returns a consistent, immutable copy of the task state.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		ID:          t.id,
		Kind:        t.kind,
		Status:      t.status,
		Command:     t.command,
		Parameters:  t.parameters.clone(),
		CreatedAt:   t.createdAt,
		Progress:    t.progress,
		CurrentStep: t.currentStep,
		Error:       t.errMsg,
		Logs:        append([]string(nil), t.logs...),
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		s.StartedAt = &started
	}
	if !t.completedAt.IsZero() {
		completed := t.completedAt
		s.CompletedAt = &completed
	}
	if t.result != nil {
		s.Result = Result(Parameters(t.result).clone())
	}
	if d, ok := t.elapsedLocked(); ok {
		secs := d.Seconds()
		s.Duration = &secs
	}
	return s
}

// Snapshot is a point-in-time copy of a task, safe to serialize and share.
type Snapshot struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"task_type"`
	Status      TaskStatus `json:"status"`
	Command     string     `json:"command"`
	Parameters  Parameters `json:"params"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step"`
	Result      Result     `json:"result"`
	Error       string     `json:"error,omitempty"`
	Logs        []string   `json:"logs"`
	Duration    *float64   `json:"duration"`
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
