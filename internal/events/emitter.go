package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// InMemoryEventEmitter stores registered handlers in memory and dispatches
// events to them in registration order.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// HandlerCount returns the number of registered handlers.
func (e *InMemoryEventEmitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// EmitEvent publishes the given event to all registered handlers.
// If any handler returns an error, the event will still be sent to all other handlers,
// and the first error encountered will be returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type,
				"task_id", event.TaskID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Errors returned by AsyncEmitter
var (
	ErrEmitterClosed = errors.New("event emitter is closed")
	ErrBufferFull    = errors.New("event buffer is full")
)

// DefaultBufferSize is the AsyncEmitter buffer used when none is given.
const DefaultBufferSize = 1024

// AsyncEmitter accepts events without blocking and forwards them to next from
// a single goroutine, preserving order.
//
// Once bufferSize events are waiting, submitted and progress events are
// dropped. Status and eviction events are always queued: they carry the
// final state of a task and sinks such as the archive cannot recover them.
type AsyncEmitter struct {
	next       EventEmitter
	bufferSize int
	logger     *slog.Logger

	mu      sync.Mutex
	pending []*TaskEvent
	closed  bool

	wake    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
}

// NewAsyncEmitter creates an emitter with the given buffer size. Call Start
// before emitting.
func NewAsyncEmitter(next EventEmitter, bufferSize int, logger *slog.Logger) *AsyncEmitter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &AsyncEmitter{
		next:       next,
		bufferSize: bufferSize,
		logger:     logger.With("component", "async_event_emitter"),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start launches the forwarding goroutine.
func (a *AsyncEmitter) Start() {
	go a.run()
}

func (a *AsyncEmitter) run() {
	defer close(a.done)
	for {
		a.mu.Lock()
		batch := a.pending
		a.pending = nil
		closed := a.closed
		a.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-a.wake
			continue
		}

		for _, event := range batch {
			if err := a.next.EmitEvent(context.Background(), event); err != nil {
				a.logger.Warn("failed to forward event",
					"error", err,
					"event_type", event.Type,
					"task_id", event.TaskID)
			}
		}
	}
}

// EmitEvent enqueues the event. It never blocks.
func (a *AsyncEmitter) EmitEvent(_ context.Context, event *TaskEvent) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrEmitterClosed
	}
	if len(a.pending) >= a.bufferSize && !event.Type.Durable() {
		a.mu.Unlock()
		n := a.dropped.Add(1)
		a.logger.Warn("event buffer full, dropping event",
			"event_type", event.Type,
			"task_id", event.TaskID,
			"dropped_total", n)
		return ErrBufferFull
	}
	a.pending = append(a.pending, event)
	a.mu.Unlock()

	a.signal()
	return nil
}

func (a *AsyncEmitter) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Pending returns how many events are waiting to be forwarded.
func (a *AsyncEmitter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Dropped returns how many events were discarded because the buffer was full.
func (a *AsyncEmitter) Dropped() int64 {
	return a.dropped.Load()
}

// Stop rejects further events, drains the buffer, and waits for the
// forwarding goroutine or ctx.
func (a *AsyncEmitter) Stop(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.signal()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining events: %w", ctx.Err())
	}
}
