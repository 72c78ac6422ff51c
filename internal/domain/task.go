package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task — единица работы в очереди одной подсистемы.
//
// Задача создаётся при постановке в очередь и получает стабильный ID —
// единственный долговечный идентификатор при любых мутациях очереди
// (перестановка, удаление). Команда и аргументы неизменяемы после
// создания: операции изменения содержимого у очереди нет, только
// удаление и повторная постановка.
//
// Статус и времена защищены собственным мьютексом задачи: пишет их
// очередь-владелец, а читают чужие очереди при ожидании зависимостей
// и API при инспекции выполняемых задач.
type Task struct {
	// ID — уникальный идентификатор задачи. Присваивается при постановке
	// в очередь, не переиспользуется в течение жизни процесса.
	ID uuid.UUID

	// RunID — ссылка на запуск рецепта, породивший задачу.
	// Нулевой UUID для задач, поставленных вручную.
	RunID uuid.UUID

	// Queue — имя очереди-владельца (например "A/pump", "microscope/camera").
	Queue string

	// Subsystem — вид подсистемы, выполняющей задачу.
	Subsystem SubsystemKind

	// Instrument — конкретный инструмент внутри подсистемы
	// (адресат диспетчеризации, например "PumpA").
	Instrument string

	// Command — имя команды ("pump", "move", "capture", "hold", ...).
	Command string

	// Args — полностью разрешённые и провалидированные аргументы команды.
	// Неизменяемы после создания задачи.
	Args map[string]any

	// Description — человекочитаемое описание для логов и инспекции.
	Description string

	// Timeout — таймаут выполнения. 0 означает таймаут очереди по умолчанию.
	Timeout time.Duration

	// DependsOn — задачи (возможно, из других очередей), которые должны
	// успешно завершиться до диспетчеризации этой задачи. Регистрируются
	// при постановке в очередь и далее не меняются.
	DependsOn []*Task

	// AlwaysRun — задача диспетчеризуется и при отказе зависимостей,
	// когда все они достигли финального статуса. Для финализаторов,
	// возвращающих занятые ресурсы (release микроскопа).
	AlwaysRun bool

	// CreatedAt — время постановки в очередь.
	CreatedAt time.Time

	mu         sync.Mutex
	status     TaskStatus
	errText    string
	startedAt  *time.Time
	finishedAt *time.Time

	// done закрывается при переходе в финальный статус.
	// Сигнал завершения для зависимых задач в других очередях.
	done chan struct{}
}

// NewTask создаёт новую задачу в статусе PENDING.
func NewTask(subsystem SubsystemKind, instrument, command string, args map[string]any) *Task {
	return &Task{
		ID:         uuid.New(),
		Subsystem:  subsystem,
		Instrument: instrument,
		Command:    command,
		Args:       args,
		status:     TaskStatusPending,
		CreatedAt:  time.Now(),
		done:       make(chan struct{}),
	}
}

// Done возвращает канал, закрываемый при достижении финального статуса.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Status возвращает текущий статус.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err возвращает текст ошибки при FAILED, иначе пустую строку.
func (t *Task) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errText
}

// StartedAt возвращает время начала выполнения, nil до запуска.
func (t *Task) StartedAt() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// FinishedAt возвращает время достижения финального статуса, nil до него.
func (t *Task) FinishedAt() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishedAt
}

// IsFinished возвращает true, если задача в финальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status().IsTerminal()
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если задача не запускалась или ещё не завершена.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt == nil || t.finishedAt == nil {
		return 0
	}
	return t.finishedAt.Sub(*t.startedAt)
}

// MarkRunning переводит задачу в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.mu.Lock()
	t.status = TaskStatusRunning
	t.startedAt = &now
	t.mu.Unlock()
}

// MarkDone переводит задачу в статус DONE и закрывает сигнал завершения.
func (t *Task) MarkDone() {
	now := time.Now()
	t.mu.Lock()
	t.status = TaskStatusDone
	t.finishedAt = &now
	t.mu.Unlock()
	close(t.done)
}

// MarkFailed переводит задачу в статус FAILED с текстом ошибки
// и закрывает сигнал завершения.
func (t *Task) MarkFailed(errMsg string) {
	now := time.Now()
	t.mu.Lock()
	t.status = TaskStatusFailed
	t.finishedAt = &now
	t.errText = errMsg
	t.mu.Unlock()
	close(t.done)
}

// MarkCancelled переводит задачу в статус CANCELLED
// и закрывает сигнал завершения.
func (t *Task) MarkCancelled() {
	now := time.Now()
	t.mu.Lock()
	t.status = TaskStatusCancelled
	t.finishedAt = &now
	t.mu.Unlock()
	close(t.done)
}
