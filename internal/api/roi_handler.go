package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/orchestrator"
)

// ListROIs возвращает таблицу ROI флоуселла.
// GET /api/v1/flowcells/{flowcell}/rois
func (h *Handler) ListROIs(w http.ResponseWriter, r *http.Request) {
	rois, err := h.orch.ROIs(r.PathValue("flowcell"))
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	List(w, rois, len(rois))
}

// SetROI добавляет или замещает ROI флоуселла.
// Отклоняется с 409, пока у флоуселла остаются задачи.
// PUT /api/v1/flowcells/{flowcell}/rois
func (h *Handler) SetROI(w http.ResponseWriter, r *http.Request) {
	var roi domain.ROI
	if err := json.NewDecoder(r.Body).Decode(&roi); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if roi.Name == "" {
		BadRequest(w, "roi name is required")
		return
	}

	err := h.orch.SetROI(r.PathValue("flowcell"), roi)
	switch {
	case err == nil:
		Success(w, map[string]string{"roi": roi.Name})
	case errors.Is(err, orchestrator.ErrUnknownFlowcell):
		NotFound(w, err.Error())
	case errors.Is(err, orchestrator.ErrBusy):
		Conflict(w, err.Error())
	default:
		// Остальное - ошибки валидации ROI, то есть входных данных.
		BadRequest(w, err.Error())
	}
}

// RemoveROI удаляет ROI флоуселла.
// DELETE /api/v1/flowcells/{flowcell}/rois/{name}
func (h *Handler) RemoveROI(w http.ResponseWriter, r *http.Request) {
	err := h.orch.RemoveROI(r.PathValue("flowcell"), r.PathValue("name"))
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	NoContent(w)
}
