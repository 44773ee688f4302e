package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aiadmin/ai-admin/internal/api/shared"
	"github.com/aiadmin/ai-admin/internal/platform/logger"
	"github.com/aiadmin/ai-admin/internal/task"
	"github.com/go-chi/chi/v5"
)

// TaskQueue is the queue surface the handlers use.
type TaskQueue interface {
	Submit(t *task.Task) (string, error)
	Get(id string) (task.Snapshot, bool)
	Logs(id string) ([]string, bool)
	List() []task.Snapshot
	ListByStatus(status task.TaskStatus) []task.Snapshot
	Cancel(id string) bool
	ClearTerminal() int
	Stats() task.Stats
	Status(recent int) task.QueueStatus
	SetMaxConcurrent(n int) error
	Pause()
	Resume(maxConcurrent int) error
}

// paramsRequest is implemented by every submit body.
type paramsRequest interface {
	Parameters() task.Parameters
}

// TaskHandler serves the /api/tasks routes.
type TaskHandler struct {
	queue TaskQueue
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(queue TaskQueue) *TaskHandler {
	return &TaskHandler{queue: queue}
}

// SubmitTask handles POST /api/tasks with an explicit task_type.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.submit(w, r, task.Kind(req.Kind), req)
}

// SubmitKind returns a handler for a typed endpoint. newRequest allocates the
// body type for kind.
func (h *TaskHandler) SubmitKind(kind task.Kind, newRequest func() paramsRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := newRequest()
		if !decodeAndValidate(w, r, req) {
			return
		}
		h.submit(w, r, kind, req)
	}
}

func (h *TaskHandler) submit(w http.ResponseWriter, r *http.Request, kind task.Kind, req paramsRequest) {
	log := logger.FromContext(r.Context())

	t := task.NewTask(kind, req.Parameters())
	id, err := h.queue.Submit(t)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	status := task.TaskStatusPending
	if snap, ok := h.queue.Get(id); ok {
		status = snap.Status
	}
	log.Info("task submitted",
		"task_id", id,
		"task_kind", kind,
		"principal", shared.GetPrincipal(r.Context()))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{
		TaskID:  id,
		Kind:    kind,
		Status:  status,
		Message: "Task added to queue",
	})
}

// ListTasks handles GET /api/tasks[?status=].
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var tasks []task.Snapshot
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := task.TaskStatus(raw)
		if !status.Valid() {
			HandleAPIError(w, r, ErrInvalidStatus)
			return
		}
		tasks = h.queue.ListByStatus(status)
	} else {
		tasks = h.queue.List()
	}
	if tasks == nil {
		tasks = []task.Snapshot{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

// GetTask handles GET /api/tasks/{id}[?include_logs=false].
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.queue.Get(chi.URLParam(r, "id"))
	if !ok {
		HandleAPIError(w, r, ErrTaskNotFound)
		return
	}
	if include, err := strconv.ParseBool(r.URL.Query().Get("include_logs")); err == nil && !include {
		snap.Logs = nil
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snap)
}

// GetTaskLogs handles GET /api/tasks/{id}/logs.
func (h *TaskHandler) GetTaskLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logs, ok := h.queue.Logs(id)
	if !ok {
		HandleAPIError(w, r, ErrTaskNotFound)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskLogsResponse{TaskID: id, Logs: logs})
}

// CancelTask handles POST /api/tasks/{id}/cancel. Cancelling a task that
// already finished is not an error; the response says it had no effect.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.queue.Get(id); !ok {
		HandleAPIError(w, r, ErrTaskNotFound)
		return
	}

	resp := CancelTaskResponse{TaskID: id, Cancelled: h.queue.Cancel(id)}
	if resp.Cancelled {
		resp.Message = "Task cancelled successfully"
		logger.FromContext(r.Context()).Info("task cancelled",
			"task_id", id,
			"principal", shared.GetPrincipal(r.Context()))
	} else {
		resp.Message = "Task could not be cancelled (already finished)"
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ClearTasks handles DELETE /api/tasks, removing every terminal task.
func (h *TaskHandler) ClearTasks(w http.ResponseWriter, r *http.Request) {
	cleared := h.queue.ClearTerminal()
	shared.RespondWithJSON(w, r, http.StatusOK, ClearTasksResponse{Cleared: cleared})
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		if !errors.Is(err, shared.ErrEmptyBody) {
			err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		HandleAPIError(w, r, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err)
		return false
	}
	return true
}

// decodeOptional is decodeAndValidate for bodies that may be omitted.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		HandleAPIError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err)
		return false
	}
	return true
}
