package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Queues
	mux.Handle("GET /api/v1/queues", chain(http.HandlerFunc(h.ListQueues)))
	mux.Handle("GET /api/v1/queues/{name}/tasks", chain(http.HandlerFunc(h.ListQueueTasks)))
	mux.Handle("POST /api/v1/queues/{name}/pause", chain(http.HandlerFunc(h.PauseQueue)))
	mux.Handle("POST /api/v1/queues/{name}/resume", chain(http.HandlerFunc(h.ResumeQueue)))
	mux.Handle("POST /api/v1/queues/pause", chain(http.HandlerFunc(h.PauseAll)))
	mux.Handle("POST /api/v1/queues/resume", chain(http.HandlerFunc(h.ResumeAll)))
	mux.Handle("POST /api/v1/queues/clear", chain(http.HandlerFunc(h.ClearAll)))

	// Flowcells
	mux.Handle("POST /api/v1/flowcells/{flowcell}/pause", chain(http.HandlerFunc(h.PauseFlowcell)))
	mux.Handle("POST /api/v1/flowcells/{flowcell}/resume", chain(http.HandlerFunc(h.ResumeFlowcell)))
	mux.Handle("GET /api/v1/flowcells/{flowcell}/rois", chain(http.HandlerFunc(h.ListROIs)))
	mux.Handle("PUT /api/v1/flowcells/{flowcell}/rois", chain(http.HandlerFunc(h.SetROI)))
	mux.Handle("DELETE /api/v1/flowcells/{flowcell}/rois/{name}", chain(http.HandlerFunc(h.RemoveROI)))

	// Tasks
	mux.Handle("DELETE /api/v1/tasks/{id}", chain(http.HandlerFunc(h.DeleteTask)))
	mux.Handle("POST /api/v1/tasks/{id}/reorder", chain(http.HandlerFunc(h.ReorderTask)))
	mux.Handle("POST /api/v1/tasks/{id}/confirm", chain(http.HandlerFunc(h.ConfirmTask)))

	// Recipes and runs
	mux.Handle("POST /api/v1/recipes/run", chain(http.HandlerFunc(h.RunRecipe)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/history", chain(http.HandlerFunc(h.ListRunHistory)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/log", chain(http.HandlerFunc(h.GetRunLog)))

	// Experiment and status
	mux.Handle("POST /api/v1/experiments", chain(http.HandlerFunc(h.NewExperiment)))
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.Status)))
}
