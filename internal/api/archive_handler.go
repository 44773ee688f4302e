package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aiadmin/ai-admin/internal/api/shared"
	"github.com/aiadmin/ai-admin/internal/platform/postgres"
	"github.com/go-chi/chi/v5"
)

// TaskArchive reads evicted tasks.
type TaskArchive interface {
	Get(ctx context.Context, id string) (*postgres.ArchivedTask, error)
	Recent(ctx context.Context, limit int) ([]postgres.ArchivedTask, error)
}

// ArchiveHandler serves the /api/archive routes.
type ArchiveHandler struct {
	archive TaskArchive
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archive TaskArchive) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// ArchiveListResponse lists archived tasks.
type ArchiveListResponse struct {
	Tasks []postgres.ArchivedTask `json:"tasks"`
	Count int                     `json:"count"`
}

// ListArchived handles GET /api/archive[?limit=N].
func (h *ArchiveHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			HandleAPIError(w, r, fmt.Errorf("%w: limit must be between 1 and 500", ErrInvalidRequest))
			return
		}
		limit = n
	}

	tasks, err := h.archive.Recent(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []postgres.ArchivedTask{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ArchiveListResponse{Tasks: tasks, Count: len(tasks)})
}

// GetArchived handles GET /api/archive/{id}.
func (h *ArchiveHandler) GetArchived(w http.ResponseWriter, r *http.Request) {
	archived, err := h.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, archived)
}
