package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// ListQueues возвращает все очереди задач.
// GET /api/v1/queues
func (h *Handler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues := h.orch.Queues()
	result := make([]QueueResponse, len(queues))
	for i, q := range queues {
		result[i] = QueueFromDomain(q)
	}
	List(w, result, len(result))
}

// ListQueueTasks возвращает задачи одной очереди: выполняемую,
// ожидающие и историю завершённых.
// GET /api/v1/queues/{name}/tasks
func (h *Handler) ListQueueTasks(w http.ResponseWriter, r *http.Request) {
	q, err := h.orch.Queue(r.PathValue("name"))
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}

	resp := struct {
		Running *TaskResponse  `json:"running,omitempty"`
		Pending []TaskResponse `json:"pending"`
		History []TaskResponse `json:"history"`
	}{
		Pending: TasksFromDomain(q.Pending()),
		History: TasksFromDomain(q.History()),
	}
	if running := q.Running(); running != nil {
		task := TaskFromDomain(running)
		resp.Running = &task
	}
	Success(w, resp)
}

// PauseAll ставит все очереди на паузу.
// POST /api/v1/queues/pause
func (h *Handler) PauseAll(w http.ResponseWriter, r *http.Request) {
	h.orch.PauseAll()
	NoContent(w)
}

// ResumeAll возобновляет все очереди.
// POST /api/v1/queues/resume
func (h *Handler) ResumeAll(w http.ResponseWriter, r *http.Request) {
	h.orch.ResumeAll()
	NoContent(w)
}

// PauseQueue ставит одну очередь на паузу.
// POST /api/v1/queues/{name}/pause
func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	q, err := h.orch.Queue(r.PathValue("name"))
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	q.Pause()
	NoContent(w)
}

// ResumeQueue возобновляет одну очередь.
// POST /api/v1/queues/{name}/resume
func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	q, err := h.orch.Queue(r.PathValue("name"))
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	q.Resume()
	NoContent(w)
}

// PauseFlowcell ставит очереди одного флоуселла на паузу.
// POST /api/v1/flowcells/{flowcell}/pause
func (h *Handler) PauseFlowcell(w http.ResponseWriter, r *http.Request) {
	err := h.orch.PauseFlowcell(r.PathValue("flowcell"))
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	NoContent(w)
}

// ResumeFlowcell возобновляет очереди одного флоуселла.
// POST /api/v1/flowcells/{flowcell}/resume
func (h *Handler) ResumeFlowcell(w http.ResponseWriter, r *http.Request) {
	err := h.orch.ResumeFlowcell(r.PathValue("flowcell"))
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	NoContent(w)
}

// DeleteTask удаляет ожидающую задачу из её очереди.
// DELETE /api/v1/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task := h.orch.FindTask(id)
	if task == nil {
		NotFound(w, "task not found")
		return
	}

	q, err := h.orch.Queue(task.Queue)
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	if !q.Delete(id) {
		InvalidState(w, "task is not pending")
		return
	}
	NoContent(w)
}

// ReorderTask переставляет ожидающую задачу на новую позицию.
// POST /api/v1/tasks/{id}/reorder
func (h *Handler) ReorderTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	task := h.orch.FindTask(id)
	if task == nil {
		NotFound(w, "task not found")
		return
	}

	q, err := h.orch.Queue(task.Queue)
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	if err := q.Reorder(id, req.Index); HandleOrchestratorError(w, h.logger, err) {
		return
	}
	NoContent(w)
}

// ClearAll удаляет все ожидающие задачи из всех очередей.
// POST /api/v1/queues/clear
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	cleared := h.orch.ClearAll()
	Success(w, map[string]int{"cleared": cleared})
}
