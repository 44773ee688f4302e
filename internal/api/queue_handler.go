package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/aiadmin/ai-admin/internal/api/shared"
	"github.com/aiadmin/ai-admin/internal/platform/logger"
)

// DefaultRecentTasks is how many tasks GET /api/queue returns by default.
const DefaultRecentTasks = 10

// QueueHandler serves the /api/queue routes.
type QueueHandler struct {
	queue TaskQueue
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(queue TaskQueue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// GetStatus handles GET /api/queue[?recent=N].
func (h *QueueHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	recent := DefaultRecentTasks
	if raw := r.URL.Query().Get("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			HandleAPIError(w, r, fmt.Errorf("%w: recent must be a non-negative integer", ErrInvalidRequest))
			return
		}
		recent = n
	}
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Status(recent))
}

// GetStats handles GET /api/queue/stats.
func (h *QueueHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}

// Pause handles POST /api/queue/pause. Running tasks continue.
func (h *QueueHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.queue.Pause()
	logger.FromContext(r.Context()).Info("queue paused", "principal", shared.GetPrincipal(r.Context()))
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}

// Resume handles POST /api/queue/resume.
func (h *QueueHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	bound := req.Bound()
	if err := h.queue.Resume(bound); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("queue resumed",
		"max_concurrent", bound,
		"principal", shared.GetPrincipal(r.Context()))
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}

// SetConcurrency handles PUT /api/queue/concurrency.
func (h *QueueHandler) SetConcurrency(w http.ResponseWriter, r *http.Request) {
	var req ConcurrencyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.queue.SetMaxConcurrent(*req.MaxConcurrent); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("queue concurrency changed",
		"max_concurrent", *req.MaxConcurrent,
		"principal", shared.GetPrincipal(r.Context()))
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}
