package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Parameters holds the job-specific inputs of a task. Values are whatever the
// command layer decoded, usually JSON scalars, so accessors are lenient about
// numeric types.
type Parameters map[string]any

// Result is the success payload of a completed task.
type Result map[string]any

// String returns the string value for key, or def when missing or empty.
func (p Parameters) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return def
	}
	return s
}

// Int returns the integer value for key, or def when missing or not numeric.
func (p Parameters) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float returns the float value for key, or def when missing or not numeric.
func (p Parameters) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the boolean value for key, or def when missing.
func (p Parameters) Bool(key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// StringMap returns a copy of the map stored under key with values
// stringified. Use SortedKeys for deterministic iteration.
func (p Parameters) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch v := p[key].(type) {
	case map[string]string:
		for k, s := range v {
			out[k] = s
		}
	case map[string]any:
		for k, s := range v {
			out[k] = fmt.Sprint(s)
		}
	}
	return out
}

func (p Parameters) clone() Parameters {
	if p == nil {
		return Parameters{}
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Progress is the callback surface a runner uses to report on its task.
// Reporting is cooperative; the queue never polls.
type Progress interface {
	// Advance records a percentage and an optional human-readable step
	Advance(percent int, step string)

	// Log appends a free-form line to the task log
	Log(message string)

	// SetCommand records the external command line being executed
	SetCommand(cmdline string)
}

// JobRunner performs the external work for one task kind.
// Version: 1.0
type JobRunner interface {
	// Run executes the job. It must honour ctx cancellation by stopping the
	// external process or request it started.
	Run(ctx context.Context, params Parameters, progress Progress) (Result, error)
}

// RunnerFunc adapts an ordinary function to the JobRunner interface.
type RunnerFunc func(ctx context.Context, params Parameters, progress Progress) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, params Parameters, progress Progress) (Result, error) {
	return f(ctx, params, progress)
}

// ErrRunnerExists is returned when a kind is registered twice.
var ErrRunnerExists = errors.New("runner already registered for kind")

// Registry maps task kinds to their runners. Lookups happen once per
// admission; registration normally happens at startup.
type Registry struct {
	mu      sync.RWMutex
	runners map[Kind]JobRunner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[Kind]JobRunner)}
}

// Register binds a runner to a kind.
func (r *Registry) Register(kind Kind, runner JobRunner) error {
	if kind == "" || runner == nil {
		return fmt.Errorf("register runner: kind and runner are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runners[kind]; ok {
		return fmt.Errorf("%w: %s", ErrRunnerExists, kind)
	}
	r.runners[kind] = runner
	return nil
}

// Lookup returns the runner registered for kind.
func (r *Registry) Lookup(kind Kind) (JobRunner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[kind]
	return runner, ok
}

// Kinds lists the registered kinds in lexical order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.runners))
	for k := range r.runners {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// taskProgress forwards runner callbacks to the task and notifies observers.
type taskProgress struct {
	task   *Task
	notify func(ChangeType, *Task)
}

func (p *taskProgress) Advance(percent int, step string) {
	p.task.Advance(percent, step)
	p.notify(ChangeProgress, p.task)
}

func (p *taskProgress) Log(message string) {
	p.task.AppendLog(message)
}

func (p *taskProgress) SetCommand(cmdline string) {
	p.task.SetCommand(cmdline)
}
