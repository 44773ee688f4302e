package api

import (
	"net/http"

	"github.com/aiadmin/ai-admin/internal/api/shared"
	"github.com/aiadmin/ai-admin/internal/task"
)

// KindLister reports the task kinds that can be submitted.
type KindLister interface {
	Kinds() []task.Kind
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	queue TaskQueue
	kinds KindLister
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(queue TaskQueue, kinds KindLister) *HealthHandler {
	return &HealthHandler{queue: queue, kinds: kinds}
}

// Health reports liveness along with the queue load and available kinds.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.queue.Stats()
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "ok",
		Kinds:   h.kinds.Kinds(),
		Running: stats.CurrentRunning,
		Pending: stats.Pending,
	})
}
