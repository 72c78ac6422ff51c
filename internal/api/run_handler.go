package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/orchestrator"
)

// RunRecipe компилирует рецепт и ставит его задачи в очереди.
// POST /api/v1/recipes/run
func (h *Handler) RunRecipe(w http.ResponseWriter, r *http.Request) {
	var req RunRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Flowcell == "" {
		BadRequest(w, "flowcell is required")
		return
	}

	path := req.Recipe
	if path == "" {
		path = h.orch.Experiment().Recipe
	}
	if path == "" {
		BadRequest(w, "no recipe: neither request nor experiment names one")
		return
	}

	run, err := h.orch.RunRecipeFile(req.Flowcell, path, req.Name, req.Cycles)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownFlowcell) {
			NotFound(w, err.Error())
			return
		}
		// Остальное - ошибки компиляции рецепта, то есть входных данных.
		BadRequest(w, err.Error())
		return
	}

	if h.runRepo != nil {
		if dbErr := h.runRepo.Create(r.Context(), run); dbErr != nil {
			h.logger.Warn("failed to persist run", "run_id", run.ID, "error", dbErr)
		}
	}

	Created(w, RunFromDomain(run))
}

// ListRuns возвращает запуски текущего процесса.
// GET /api/v1/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.orch.Runs()
	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}
	List(w, result, len(result))
}

// ListRunHistory возвращает журнал запусков из БД, включая прошлые
// процессы контроллера.
// GET /api/v1/runs/history
func (h *Handler) ListRunHistory(w http.ResponseWriter, r *http.Request) {
	if h.runRepo == nil {
		NotFound(w, "run journal is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.runRepo.List(r.Context(), limit)
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	List(w, runs, len(runs))
}

// GetRun возвращает запуск с его задачами.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.orch.Run(id)
	if err != nil {
		// Запуски прошлых процессов остаются в журнале.
		if h.runRepo != nil {
			stored, dbErr := h.runRepo.GetByID(r.Context(), id)
			if dbErr == nil {
				Success(w, stored)
				return
			}
		}
		HandleOrchestratorError(w, h.logger, err)
		return
	}

	resp := struct {
		RunResponse
		TaskList []TaskResponse `json:"task_list"`
	}{
		RunResponse: RunFromDomain(run),
		TaskList:    TasksFromDomain(run.Tasks),
	}
	Success(w, resp)
}

// GetRunLog возвращает журнал смен статусов задач запуска из БД.
// GET /api/v1/runs/{id}/log
func (h *Handler) GetRunLog(w http.ResponseWriter, r *http.Request) {
	if h.taskLog == nil {
		NotFound(w, "task log is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	entries, err := h.taskLog.ByRun(r.Context(), id)
	if HandleOrchestratorError(w, h.logger, err) {
		return
	}
	List(w, entries, len(entries))
}

// ConfirmTask подтверждает сообщение задачи USER.
// POST /api/v1/tasks/{id}/confirm
func (h *Handler) ConfirmTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}
	if err := h.orch.Confirm(id); HandleOrchestratorError(w, h.logger, err) {
		return
	}
	NoContent(w)
}

// NewExperiment загружает новую конфигурацию эксперимента.
// Отклоняется с 409, пока очереди не пусты.
// POST /api/v1/experiments
func (h *Handler) NewExperiment(w http.ResponseWriter, r *http.Request) {
	var req NewExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Path == "" {
		BadRequest(w, "path is required")
		return
	}

	exp, err := config.LoadExperiment(req.Path)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.orch.NewExperiment(exp); HandleOrchestratorError(w, h.logger, err) {
		return
	}
	Success(w, map[string]string{"experiment": exp.Name})
}

// Status возвращает сводку состояния контроллера.
// GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	queues := h.orch.Queues()
	queueResp := make([]QueueResponse, len(queues))
	for i, q := range queues {
		queueResp[i] = QueueFromDomain(q)
	}

	runs := h.orch.Runs()
	runResp := make([]RunResponse, len(runs))
	for i, run := range runs {
		runResp[i] = RunFromDomain(run)
	}

	Success(w, StatusResponse{
		Experiment:           h.orch.Experiment().Name,
		Queues:               queueResp,
		MicroscopeOwner:      h.orch.MicroscopeOwner(),
		AwaitingConfirmation: h.orch.AwaitingConfirmation(),
		Runs:                 runResp,
	})
}
