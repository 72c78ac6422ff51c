package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/queue"
)

// Task DTOs

// TaskResponse — ответ с задачей.
type TaskResponse struct {
	ID          uuid.UUID         `json:"id"`
	RunID       uuid.UUID         `json:"run_id,omitempty"`
	Queue       string            `json:"queue"`
	Subsystem   string            `json:"subsystem"`
	Instrument  string            `json:"instrument,omitempty"`
	Command     string            `json:"command"`
	Args        map[string]any    `json:"args,omitempty"`
	Description string            `json:"description,omitempty"`
	Status      domain.TaskStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	DependsOn   []uuid.UUID       `json:"depends_on,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t *domain.Task) TaskResponse {
	deps := make([]uuid.UUID, 0, len(t.DependsOn))
	for _, dep := range t.DependsOn {
		deps = append(deps, dep.ID)
	}
	return TaskResponse{
		ID:          t.ID,
		RunID:       t.RunID,
		Queue:       t.Queue,
		Subsystem:   string(t.Subsystem),
		Instrument:  t.Instrument,
		Command:     t.Command,
		Args:        t.Args,
		Description: t.Description,
		Status:      t.Status(),
		Error:       t.Err(),
		DependsOn:   deps,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt(),
		FinishedAt:  t.FinishedAt(),
	}
}

// TasksFromDomain конвертирует срез задач.
func TasksFromDomain(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = TaskFromDomain(t)
	}
	return out
}

// Queue DTOs

// QueueResponse — ответ с очередью.
type QueueResponse struct {
	Name       string        `json:"name"`
	Subsystem  string        `json:"subsystem"`
	Instrument string        `json:"instrument,omitempty"`
	Paused     bool          `json:"paused"`
	Depth      int           `json:"depth"`
	Running    *TaskResponse `json:"running,omitempty"`
}

// QueueFromDomain конвертирует очередь в QueueResponse.
func QueueFromDomain(q *queue.TaskQueue) QueueResponse {
	resp := QueueResponse{
		Name:       q.Name(),
		Subsystem:  string(q.Subsystem()),
		Instrument: q.Instrument(),
		Paused:     q.Paused(),
		Depth:      q.Len(),
	}
	if running := q.Running(); running != nil {
		task := TaskFromDomain(running)
		resp.Running = &task
	}
	return resp
}

// Run DTOs

// RunRecipeRequest — запрос на запуск рецепта.
type RunRecipeRequest struct {
	Flowcell string `json:"flowcell"`
	// Recipe — путь к файлу рецепта. Пусто означает рецепт эксперимента.
	Recipe string `json:"recipe,omitempty"`
	// Name — имя рецепта в многодокументном файле. Пусто означает первый.
	Name   string `json:"name,omitempty"`
	Cycles int    `json:"cycles,omitempty"`
}

// RunResponse — ответ с запуском.
type RunResponse struct {
	ID         uuid.UUID        `json:"id"`
	Flowcell   string           `json:"flowcell"`
	Recipe     string           `json:"recipe"`
	Cycles     int              `json:"cycles"`
	Status     domain.RunStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	Progress   float64          `json:"progress"`
	Tasks      int              `json:"tasks"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r *domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Flowcell:   r.Flowcell,
		Recipe:     r.Recipe,
		Cycles:     r.Cycles,
		Status:     r.Status(),
		Error:      r.Err(),
		Progress:   r.Progress(),
		Tasks:      len(r.Tasks),
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt(),
	}
}

// Control DTOs

// ReorderRequest — запрос на перестановку задачи в очереди.
type ReorderRequest struct {
	Index int `json:"index"`
}

// NewExperimentRequest — запрос на загрузку нового эксперимента.
type NewExperimentRequest struct {
	// Path — путь к TOML конфигурации эксперимента.
	Path string `json:"path"`
}

// StatusResponse — сводка состояния контроллера.
type StatusResponse struct {
	Experiment           string          `json:"experiment"`
	Queues               []QueueResponse `json:"queues"`
	MicroscopeOwner      string          `json:"microscope_owner,omitempty"`
	AwaitingConfirmation []uuid.UUID     `json:"awaiting_confirmation,omitempty"`
	Runs                 []RunResponse   `json:"runs,omitempty"`
}
