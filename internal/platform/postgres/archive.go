package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aiadmin/ai-admin/internal/events"
	"github.com/aiadmin/ai-admin/internal/task"
)

// DefaultRecentLimit bounds Recent when the caller passes no limit.
const DefaultRecentLimit = 50

// ArchivedTask is a terminal task as it was when evicted from the queue.
type ArchivedTask struct {
	task.Snapshot
	ArchivedAt time.Time `json:"archived_at"`
}

// TaskArchive stores evicted tasks.
type TaskArchive struct {
	db     DBTX
	logger *slog.Logger
}

// NewTaskArchive creates an archive on db.
func NewTaskArchive(db DBTX, logger *slog.Logger) *TaskArchive {
	return &TaskArchive{
		db:     db,
		logger: logger.With("component", "task_archive"),
	}
}

const insertArchivedTask = `
	INSERT INTO task_archive (
		id, task_type, status, command, params, result, error_message,
		progress, logs, created_at, started_at, completed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING
`

// Save writes a terminal snapshot. Saving the same task twice is a no-op.
func (a *TaskArchive) Save(ctx context.Context, snap task.Snapshot) error {
	if !snap.Status.IsTerminal() {
		return fmt.Errorf("%w: status %s is not terminal", ErrInvalidEntity, snap.Status)
	}

	params, err := json.Marshal(snap.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	logs, err := json.Marshal(snap.Logs)
	if err != nil {
		return fmt.Errorf("failed to encode logs: %w", err)
	}
	var result any
	if snap.Result != nil {
		encoded, err := json.Marshal(snap.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		result = encoded
	}

	_, err = a.db.ExecContext(ctx, insertArchivedTask,
		snap.ID,
		string(snap.Kind),
		string(snap.Status),
		snap.Command,
		params,
		result,
		snap.Error,
		snap.Progress,
		logs,
		snap.CreatedAt.UTC(),
		nullTime(snap.StartedAt),
		nullTime(snap.CompletedAt),
	)
	if err != nil {
		a.logger.Error("failed to archive task",
			"task_id", snap.ID,
			"task_kind", snap.Kind,
			"error", err)
		return fmt.Errorf("failed to archive task: %w", MapError(err))
	}
	return nil
}

const selectArchivedColumns = `
	SELECT id, task_type, status, command, params, result, error_message,
		progress, logs, created_at, started_at, completed_at, archived_at
	FROM task_archive
`

// Get returns one archived task.
func (a *TaskArchive) Get(ctx context.Context, id string) (*ArchivedTask, error) {
	row := a.db.QueryRowContext(ctx, selectArchivedColumns+" WHERE id = $1", id)
	archived, err := scanArchivedTask(row)
	if err != nil {
		return nil, MapError(err)
	}
	return archived, nil
}

// Recent returns the most recently completed archived tasks, newest first.
func (a *TaskArchive) Recent(ctx context.Context, limit int) ([]ArchivedTask, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := a.db.QueryContext(ctx,
		selectArchivedColumns+" ORDER BY completed_at DESC NULLS LAST LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", MapError(err))
	}
	defer rows.Close()

	var out []ArchivedTask
	for rows.Next() {
		archived, err := scanArchivedTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived task: %w", err)
		}
		out = append(out, *archived)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive rows: %w", err)
	}
	return out, nil
}

// HandleEvent archives tasks as they are evicted; other events are ignored.
func (a *TaskArchive) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	if event.Type != events.TypeTaskEvicted {
		return nil
	}
	return a.Save(ctx, event.Task)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArchivedTask(row rowScanner) (*ArchivedTask, error) {
	var (
		archived               ArchivedTask
		kind, status           string
		params, result, logs   []byte
		startedAt, completedAt sql.NullTime
	)

	err := row.Scan(
		&archived.ID,
		&kind,
		&status,
		&archived.Command,
		&params,
		&result,
		&archived.Error,
		&archived.Progress,
		&logs,
		&archived.CreatedAt,
		&startedAt,
		&completedAt,
		&archived.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}

	archived.Kind = task.Kind(kind)
	archived.Status = task.TaskStatus(status)

	if err := json.Unmarshal(params, &archived.Parameters); err != nil {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &archived.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	if err := json.Unmarshal(logs, &archived.Logs); err != nil {
		return nil, fmt.Errorf("failed to decode logs: %w", err)
	}

	if startedAt.Valid {
		archived.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		archived.CompletedAt = &completedAt.Time
	}
	if archived.StartedAt != nil && archived.CompletedAt != nil {
		secs := archived.CompletedAt.Sub(*archived.StartedAt).Seconds()
		archived.Duration = &secs
	}

	return &archived, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
