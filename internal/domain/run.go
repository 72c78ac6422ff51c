package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run — один запуск рецепта на флоуселле.
//
// Агрегирует все задачи, порождённые компиляцией рецепта, включая
// задачи микроскопа. Статус выводится из статусов задач и меняется
// только оркестратором; мьютекс закрывает гонку между финализацией
// запуска и его чтением из API.
type Run struct {
	// ID — уникальный идентификатор запуска.
	ID uuid.UUID

	// Flowcell — флоуселл, на котором выполняется рецепт.
	Flowcell string

	// Recipe — имя рецепта.
	Recipe string

	// Cycles — число циклов, с которым рецепт был скомпилирован.
	Cycles int

	// Tasks — задачи запуска в порядке компиляции.
	// Заполняются при планировании, далее не меняются.
	Tasks []*Task

	// CreatedAt — время постановки задач в очереди.
	CreatedAt time.Time

	mu         sync.Mutex
	status     RunStatus
	errText    string
	finishedAt *time.Time
}

// NewRun создаёт запуск рецепта в статусе RUNNING.
func NewRun(flowcell, recipe string, cycles int) *Run {
	return &Run{
		ID:        uuid.New(),
		Flowcell:  flowcell,
		Recipe:    recipe,
		Cycles:    cycles,
		status:    RunStatusRunning,
		CreatedAt: time.Now(),
	}
}

// Status возвращает текущий статус запуска.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err возвращает текст ошибки при FAILED, иначе пустую строку.
func (r *Run) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errText
}

// FinishedAt возвращает время достижения финального статуса, nil до него.
func (r *Run) FinishedAt() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishedAt
}

// MarkDone переводит запуск в статус DONE.
func (r *Run) MarkDone() {
	now := time.Now()
	r.mu.Lock()
	r.status = RunStatusDone
	r.finishedAt = &now
	r.mu.Unlock()
}

// MarkFailed переводит запуск в статус FAILED с текстом ошибки.
func (r *Run) MarkFailed(errMsg string) {
	now := time.Now()
	r.mu.Lock()
	r.status = RunStatusFailed
	r.errText = errMsg
	r.finishedAt = &now
	r.mu.Unlock()
}

// Progress возвращает долю завершённых задач запуска, от 0 до 1.
func (r *Run) Progress() float64 {
	if len(r.Tasks) == 0 {
		return 0
	}
	finished := 0
	for _, t := range r.Tasks {
		if t.IsFinished() {
			finished++
		}
	}
	return float64(finished) / float64(len(r.Tasks))
}
