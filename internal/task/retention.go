package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically evicts terminal tasks older than a maximum age so the
// registry does not grow without bound in a long-lived process.
type Sweeper struct {
	queue    *TaskQueue
	maxAge   time.Duration
	schedule cron.Schedule
	cron     *cron.Cron
	logger   *slog.Logger

	// now is swapped in tests
	now func() time.Time
}

// NewSweeper parses a standard five-field cron expression and prepares a
// sweeper. A zero maxAge evicts every terminal task on each sweep. It does
// nothing until Start is called.
func NewSweeper(queue *TaskQueue, spec string, maxAge time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if maxAge < 0 {
		return nil, fmt.Errorf("retention max age must not be negative, got %s", maxAge)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse retention schedule %q: %w", spec, err)
	}

	s := &Sweeper{
		queue:    queue,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger.With("component", "retention_sweeper"),
		now:      time.Now,
	}
	s.cron = cron.New()
	s.cron.Schedule(schedule, cron.FuncJob(func() { s.Sweep() }))
	return s, nil
}

// Sweep evicts terminal tasks completed more than maxAge ago and returns the
// number removed.
func (s *Sweeper) Sweep() int {
	cutoff := s.now().Add(-s.maxAge)
	removed := s.queue.ClearTerminalBefore(cutoff)
	s.logger.Debug("retention sweep finished",
		"cutoff", cutoff,
		"removed", removed)
	return removed
}

// Next returns the next time the sweep will fire after from.
func (s *Sweeper) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start begins running sweeps in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("retention sweeper started",
		"max_age", s.maxAge,
		"next_run", s.Next(s.now()))
}

// Stop halts the schedule and waits for an in-flight sweep or ctx to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("retention sweeper stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for retention sweep: %w", ctx.Err())
	}
}
