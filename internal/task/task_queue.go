package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed        = errors.New("task queue is closed")
	ErrNilTask            = errors.New("task is nil")
	ErrUnknownKind        = errors.New("no runner registered for task kind")
	ErrDuplicateTask      = errors.New("task already submitted")
	ErrTaskNotPending     = errors.New("task is not pending")
	ErrInvalidConcurrency = errors.New("max concurrent must not be negative")
)

// DefaultMaxConcurrent is the admission bound used when none is configured.
const DefaultMaxConcurrent = 2

// QueueConfig holds configuration options for the task queue
type QueueConfig struct {
	// MaxConcurrent bounds how many tasks run at once. Zero pauses admission.
	MaxConcurrent int

	// JobTimeout is an optional per-task deadline. Zero means no deadline.
	JobTimeout time.Duration
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

// Stats summarises the queue.
type Stats struct {
	Total          int `json:"total_tasks"`
	Pending        int `json:"pending"`
	Running        int `json:"running"`
	Completed      int `json:"completed"`
	Failed         int `json:"failed"`
	Cancelled      int `json:"cancelled"`
	MaxConcurrent  int `json:"max_concurrent"`
	CurrentRunning int `json:"current_running"`
}

// QueueStatus is Stats plus the most recent and the running tasks.
type QueueStatus struct {
	Statistics   Stats      `json:"statistics"`
	RecentTasks  []Snapshot `json:"recent_tasks"`
	RunningTasks []Snapshot `json:"running_tasks"`
}

// Option customises a TaskQueue.
type Option func(*TaskQueue)

// WithObserver registers an observer for task changes.
func WithObserver(o Observer) Option {
	return func(q *TaskQueue) {
		if o != nil {
			q.observers = append(q.observers, o)
		}
	}
}

// TaskQueue admits submitted tasks in FIFO order and runs at most
// MaxConcurrent of them at a time, each in its own goroutine.
//
// tasks, pending and running form one consistency unit guarded by mu. Job
// execution happens outside the lock.
type TaskQueue struct {
	registry   *Registry
	logger     *slog.Logger
	observers  observers
	jobTimeout time.Duration

	mu            sync.Mutex
	tasks         map[string]*Task
	pending       []string
	running       map[string]context.CancelFunc
	maxConcurrent int
	closed        bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewTaskQueue creates a queue that dispatches to the runners in registry.
func NewTaskQueue(registry *Registry, config QueueConfig, logger *slog.Logger, opts ...Option) *TaskQueue {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent < 0 {
		logger.Warn("invalid max concurrent specified, using default",
			"specified", config.MaxConcurrent,
			"default", DefaultMaxConcurrent)
		maxConcurrent = DefaultMaxConcurrent
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &TaskQueue{
		registry:      registry,
		logger:        logger.With("component", "task_queue"),
		jobTimeout:    config.JobTimeout,
		tasks:         make(map[string]*Task),
		running:       make(map[string]context.CancelFunc),
		maxConcurrent: maxConcurrent,
		baseCtx:       ctx,
		baseCancel:    cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit registers a pending task, appends it to the FIFO and tries to admit
// work. It never waits for the job itself.
func (q *TaskQueue) Submit(t *Task) (string, error) {
	if t == nil {
		return "", ErrNilTask
	}
	if _, ok := q.registry.Lookup(t.Kind()); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, t.Kind())
	}
	if t.Status() != TaskStatusPending {
		return "", fmt.Errorf("%w: %s is %s", ErrTaskNotPending, t.ID(), t.Status())
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", ErrQueueClosed
	}
	if _, exists := q.tasks[t.ID()]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID())
	}

	q.tasks[t.ID()] = t
	q.pending = append(q.pending, t.ID())
	t.AppendLog("Task added to queue")
	q.observers.notify(ChangeSubmitted, t)

	q.logger.Debug("task enqueued",
		"task_id", t.ID(),
		"task_kind", t.Kind(),
		"pending", len(q.pending),
		"running", len(q.running),
		"max_concurrent", q.maxConcurrent)

	q.admitLocked()
	return t.ID(), nil
}

// Get returns a snapshot of the task with the given ID.
func (q *TaskQueue) Get(id string) (Snapshot, bool) {
	q.mu.Lock()
	t, ok := q.tasks[id]
	q.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return t.Snapshot(), true
}

// Logs returns the log lines of the task with the given ID.
func (q *TaskQueue) Logs(id string) ([]string, bool) {
	q.mu.Lock()
	t, ok := q.tasks[id]
	q.mu.Unlock()
	if !ok {
		return nil, false
	}
	return t.Logs(), true
}

// List returns snapshots of every task, oldest first.
func (q *TaskQueue) List() []Snapshot {
	return q.collect(func(Snapshot) bool { return true })
}

// ListByStatus returns snapshots of the tasks currently in status, oldest first.
func (q *TaskQueue) ListByStatus(status TaskStatus) []Snapshot {
	return q.collect(func(s Snapshot) bool { return s.Status == status })
}

func (q *TaskQueue) collect(keep func(Snapshot) bool) []Snapshot {
	q.mu.Lock()
	all := make([]*Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		all = append(all, t)
	}
	q.mu.Unlock()

	out := make([]Snapshot, 0, len(all))
	for _, t := range all {
		s := t.Snapshot()
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Cancel stops a pending or running task. A pending task is removed from the
// FIFO and never starts. A running task has its context cancelled and its slot
// freed immediately; the queue does not wait for the external process to exit.
// It returns false for unknown or already terminal tasks.
func (q *TaskQueue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return false
	}

	switch t.Status() {
	case TaskStatusPending:
		q.removePendingLocked(id)
		if !t.Cancel() {
			return false
		}
		q.observers.notify(ChangeStatus, t)
		q.logger.Info("pending task cancelled", "task_id", id, "task_kind", t.Kind())
		return true

	case TaskStatusRunning:
		if cancel, ok := q.running[id]; ok {
			cancel()
			delete(q.running, id)
		}
		cancelled := t.Cancel()
		if cancelled {
			q.observers.notify(ChangeStatus, t)
			q.logger.Info("running task cancelled", "task_id", id, "task_kind", t.Kind())
		}
		q.admitLocked()
		return cancelled
	}

	return false
}

// ClearTerminal removes every completed, failed and cancelled task and
// returns how many were removed.
func (q *TaskQueue) ClearTerminal() int {
	return q.evict(func(*Task) bool { return true })
}

// ClearTerminalBefore removes terminal tasks that completed before cutoff.
func (q *TaskQueue) ClearTerminalBefore(cutoff time.Time) int {
	return q.evict(func(t *Task) bool {
		s := t.Snapshot()
		return s.CompletedAt != nil && s.CompletedAt.Before(cutoff)
	})
}

func (q *TaskQueue) evict(match func(*Task) bool) int {
	q.mu.Lock()
	var evicted []Snapshot
	for id, t := range q.tasks {
		if !t.Status().IsTerminal() || !match(t) {
			continue
		}
		delete(q.tasks, id)
		evicted = append(evicted, t.Snapshot())
	}
	remaining := len(q.tasks)
	q.mu.Unlock()

	// Evicted tasks can no longer change, so observers are told after the
	// lock is released.
	for _, snap := range evicted {
		q.observers.notifySnapshot(ChangeEvicted, snap)
	}

	if len(evicted) > 0 {
		q.logger.Info("terminal tasks cleared", "count", len(evicted), "remaining", remaining)
	}
	return len(evicted)
}

// Stats counts tasks by status.
func (q *TaskQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statsLocked()
}

func (q *TaskQueue) statsLocked() Stats {
	s := Stats{
		Total:          len(q.tasks),
		MaxConcurrent:  q.maxConcurrent,
		CurrentRunning: len(q.running),
	}
	for _, t := range q.tasks {
		switch t.Status() {
		case TaskStatusPending:
			s.Pending++
		case TaskStatusRunning:
			s.Running++
		case TaskStatusCompleted:
			s.Completed++
		case TaskStatusFailed:
			s.Failed++
		case TaskStatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Status returns the statistics together with the recent most recently
// created tasks and every running task, newest first.
func (q *TaskQueue) Status(recent int) QueueStatus {
	stats := q.Stats()
	all := q.List()

	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	status := QueueStatus{
		Statistics:   stats,
		RecentTasks:  []Snapshot{},
		RunningTasks: []Snapshot{},
	}
	for i, s := range all {
		if i < recent {
			status.RecentTasks = append(status.RecentTasks, s)
		}
		if s.Status == TaskStatusRunning {
			status.RunningTasks = append(status.RunningTasks, s)
		}
	}
	return status
}

// MaxConcurrent returns the current admission bound.
func (q *TaskQueue) MaxConcurrent() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxConcurrent
}

// SetMaxConcurrent changes the admission bound. Raising it backfills the new
// capacity immediately; zero pauses admission while running jobs continue.
func (q *TaskQueue) SetMaxConcurrent(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, n)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	previous := q.maxConcurrent
	q.maxConcurrent = n
	q.logger.Info("max concurrent updated", "previous", previous, "current", n)
	q.admitLocked()
	return nil
}

// Pause stops admission of new tasks.
func (q *TaskQueue) Pause() {
	_ = q.SetMaxConcurrent(0)
}

// Resume restores admission with the given bound.
func (q *TaskQueue) Resume(maxConcurrent int) error {
	return q.SetMaxConcurrent(maxConcurrent)
}

// Shutdown closes the queue to new submissions, cancels pending and running
// tasks, and waits for the execution goroutines to return or ctx to expire.
func (q *TaskQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, id := range q.pending {
			if t, ok := q.tasks[id]; ok && t.Cancel() {
				q.observers.notify(ChangeStatus, t)
			}
		}
		q.pending = nil
		for id, cancel := range q.running {
			cancel()
			if t, ok := q.tasks[id]; ok && t.Cancel() {
				q.observers.notify(ChangeStatus, t)
			}
			delete(q.running, id)
		}
		q.logger.Info("task queue closed")
	}
	q.mu.Unlock()

	q.baseCancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

// admitLocked launches pending tasks, oldest first, while capacity remains.
// It must be called with mu held after every event that changes either side
// of the bound.
func (q *TaskQueue) admitLocked() {
	for !q.closed && len(q.running) < q.maxConcurrent && len(q.pending) > 0 {
		id := q.pending[0]
		q.pending[0] = ""
		q.pending = q.pending[1:]

		t, ok := q.tasks[id]
		if !ok || t.Status() != TaskStatusPending {
			continue
		}

		runner, ok := q.registry.Lookup(t.Kind())
		if !ok {
			if t.Fail(fmt.Sprintf("%s: %s", ErrUnknownKind, t.Kind())) {
				q.observers.notify(ChangeStatus, t)
			}
			continue
		}

		ctx, cancel := context.WithCancel(q.baseCtx)
		q.running[id] = cancel
		t.Start()
		q.observers.notify(ChangeStatus, t)

		q.logger.Debug("task admitted",
			"task_id", id,
			"task_kind", t.Kind(),
			"running", len(q.running),
			"max_concurrent", q.maxConcurrent)

		q.wg.Add(1)
		go q.execute(ctx, cancel, t, runner)
	}
}

func (q *TaskQueue) removePendingLocked(id string) {
	for i, pid := range q.pending {
		if pid == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}
