package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Sequora/internal/domain"
)

// Executor — исполнение одной задачи очереди.
//
// Реализацию предоставляет оркестратор: команды инструментов уходят
// в диспетчер, управляющие задачи (hold, wait, user) исполняются
// локально. Ошибка переводит задачу в FAILED.
type Executor interface {
	Execute(ctx context.Context, task *domain.Task) error
}

// FailurePolicy — поведение очереди после FAILED задачи.
type FailurePolicy int

const (
	// PolicyHalt — очередь ставится на паузу, оставшиеся задачи ждут
	// вмешательства оператора.
	PolicyHalt FailurePolicy = iota

	// PolicySkip — очередь продолжает со следующей задачи.
	PolicySkip
)

// Config — параметры очереди.
type Config struct {
	// Name — имя очереди ("A/pump", "microscope/camera").
	Name string

	// Subsystem — подсистема, которую обслуживает очередь.
	Subsystem domain.SubsystemKind

	// Instrument — инструмент, которому адресуются задачи.
	Instrument string

	// DefaultTimeout — таймаут задач, не задавших собственный.
	// 0 означает без ограничения.
	DefaultTimeout time.Duration

	// OnFailure — поведение после FAILED задачи.
	OnFailure FailurePolicy

	// HistoryLimit — сколько завершённых задач хранить. 0 означает 64.
	HistoryLimit int
}

// TaskQueue — очередь задач одной подсистемы.
//
// Все методы безопасны для конкурентного вызова. Исполнение идёт
// в горутине Run, запускаемой владельцем очереди.
type TaskQueue struct {
	cfg      Config
	executor Executor
	logger   *slog.Logger

	// OnTransition вызывается после каждой смены статуса задачи,
	// вне внутренней блокировки. Назначается до Run.
	OnTransition func(*domain.Task)

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*domain.Task
	running *domain.Task
	history []*domain.Task
	paused  bool

	// wake будит ожидание зависимостей при мутациях очереди.
	wake chan struct{}
}

// New создаёт очередь. Исполнение начинается после вызова Run.
func New(cfg Config, executor Executor, logger *slog.Logger) *TaskQueue {
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &TaskQueue{
		cfg:      cfg,
		executor: executor,
		logger:   logger.With("queue", cfg.Name),
		wake:     make(chan struct{}, 1),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Name возвращает имя очереди.
func (q *TaskQueue) Name() string { return q.cfg.Name }

// Subsystem возвращает подсистему очереди.
func (q *TaskQueue) Subsystem() domain.SubsystemKind { return q.cfg.Subsystem }

// Instrument возвращает инструмент очереди.
func (q *TaskQueue) Instrument() string { return q.cfg.Instrument }

// Enqueue ставит задачу в хвост очереди и возвращает её же.
// ID задачи — стабильная ручка для последующих мутаций.
func (q *TaskQueue) Enqueue(task *domain.Task) *domain.Task {
	q.mu.Lock()
	task.Queue = q.cfg.Name
	if task.Instrument == "" {
		task.Instrument = q.cfg.Instrument
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()

	q.notify()
	q.logger.Debug("task enqueued", "task_id", task.ID, "command", task.Command)
	return task
}

// Delete удаляет PENDING задачу по ID, переводя её в CANCELLED.
// Возвращает false, если задача не найдена или уже запущена.
// Порядок остальных задач сохраняется.
func (q *TaskQueue) Delete(id uuid.UUID) bool {
	q.mu.Lock()
	var removed *domain.Task
	for i, t := range q.pending {
		if t.ID == id {
			removed = t
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	if removed == nil {
		q.mu.Unlock()
		return false
	}
	removed.MarkCancelled()
	q.pushHistoryLocked(removed)
	q.mu.Unlock()

	q.notify()
	q.transition(removed)
	q.logger.Info("task deleted", "task_id", id)
	return true
}

// Reorder перемещает PENDING задачу на позицию index в списке ожидания.
// Индекс за пределами списка прижимается к ближайшей границе.
// Для задачи вне статуса PENDING возвращает *InvalidStateError.
func (q *TaskQueue) Reorder(id uuid.UUID, index int) error {
	q.mu.Lock()
	defer func() {
		q.mu.Unlock()
		q.notify()
	}()

	pos := -1
	for i, t := range q.pending {
		if t.ID == id {
			pos = i
			break
		}
	}
	if pos == -1 {
		if t := q.findLocked(id); t != nil {
			return &InvalidStateError{Op: "reorder", TaskID: id, Status: t.Status()}
		}
		return ErrTaskNotFound
	}

	task := q.pending[pos]
	q.pending = append(q.pending[:pos], q.pending[pos+1:]...)

	if index < 0 {
		index = 0
	}
	if index > len(q.pending) {
		index = len(q.pending)
	}
	q.pending = append(q.pending[:index], append([]*domain.Task{task}, q.pending[index:]...)...)

	q.logger.Info("task reordered", "task_id", id, "index", index)
	return nil
}

// Pause приостанавливает запуск новых задач.
// Уже выполняемая задача не прерывается.
func (q *TaskQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.notify()
	q.logger.Info("queue paused")
}

// Resume возобновляет запуск задач.
func (q *TaskQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.notify()
	q.logger.Info("queue resumed")
}

// Paused возвращает true, если очередь на паузе.
func (q *TaskQueue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Clear отменяет все PENDING задачи и возвращает их число.
// Выполняемая задача не затрагивается.
func (q *TaskQueue) Clear() int {
	q.mu.Lock()
	cleared := q.pending
	q.pending = nil
	for _, t := range cleared {
		t.MarkCancelled()
		q.pushHistoryLocked(t)
	}
	q.mu.Unlock()

	q.notify()
	for _, t := range cleared {
		q.transition(t)
	}
	if len(cleared) > 0 {
		q.logger.Info("queue cleared", "cancelled", len(cleared))
	}
	return len(cleared)
}

// Len возвращает число PENDING задач.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Idle возвращает true, если очередь пуста и ничего не выполняет.
func (q *TaskQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && q.running == nil
}

// Pending возвращает копию списка ожидания в текущем порядке.
func (q *TaskQueue) Pending() []*domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*domain.Task, len(q.pending))
	copy(out, q.pending)
	return out
}

// Running возвращает выполняемую задачу или nil.
func (q *TaskQueue) Running() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// History возвращает завершённые задачи, новые в конце.
func (q *TaskQueue) History() []*domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*domain.Task, len(q.history))
	copy(out, q.history)
	return out
}

// Find ищет задачу по ID среди ожидающих, выполняемой и истории.
func (q *TaskQueue) Find(id uuid.UUID) *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.findLocked(id)
}

// Run исполняет задачи до отмены контекста.
// Запускается владельцем очереди ровно один раз.
func (q *TaskQueue) Run(ctx context.Context) {
	// Отмена контекста должна будить ожидание в cond.Wait.
	stop := context.AfterFunc(ctx, func() { q.notify() })
	defer stop()

	for {
		task := q.next(ctx)
		if task == nil {
			return
		}

		switch q.awaitDeps(ctx, task) {
		case depsCtxDone:
			return
		case depsHeadChanged:
			continue
		case depsFailed:
			// Статус уже выставлен в awaitDeps.
			continue
		}

		q.execute(ctx, task)
	}
}

// next блокируется до появления готовой к запуску головы очереди.
// Возвращает nil при отмене контекста. Задача остаётся в списке
// ожидания: извлечение происходит только в момент запуска.
func (q *TaskQueue) next(ctx context.Context) *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !q.paused && len(q.pending) > 0 {
			return q.pending[0]
		}
		q.cond.Wait()
	}
}

type depsResult int

const (
	depsReady depsResult = iota
	depsFailed
	depsHeadChanged
	depsCtxDone
)

// awaitDeps ждёт завершения зависимостей задачи, пока та остаётся
// головой очереди. Мутация очереди прерывает ожидание, и цикл
// перечитывает голову заново.
func (q *TaskQueue) awaitDeps(ctx context.Context, task *domain.Task) depsResult {
	for {
		q.mu.Lock()
		if q.paused || len(q.pending) == 0 || q.pending[0] != task {
			q.mu.Unlock()
			return depsHeadChanged
		}

		var wait *domain.Task
		for _, dep := range task.DependsOn {
			status := dep.Status()
			switch status {
			case domain.TaskStatusFailed, domain.TaskStatusCancelled:
				// Финализаторы идут на диспетчеризацию и после отказа
				// зависимости, дождавшись её финального статуса.
				if task.AlwaysRun {
					continue
				}
				q.pending = q.pending[1:]
				task.MarkFailed((&DependencyFailedError{
					TaskID:    task.ID,
					DepID:     dep.ID,
					DepStatus: status,
				}).Error())
				q.pushHistoryLocked(task)
				halt := q.cfg.OnFailure == PolicyHalt
				if halt {
					q.paused = true
				}
				q.mu.Unlock()

				q.notify()
				q.transition(task)
				q.logger.Warn("task failed before dispatch",
					"task_id", task.ID, "dependency", dep.ID, "dependency_status", status)
				if halt {
					q.logger.Warn("queue halted after failure", "task_id", task.ID)
				}
				return depsFailed
			case domain.TaskStatusDone:
				continue
			default:
				wait = dep
			}
			if wait != nil {
				break
			}
		}
		q.mu.Unlock()

		if wait == nil {
			return depsReady
		}

		select {
		case <-wait.Done():
		case <-q.wake:
		case <-ctx.Done():
			return depsCtxDone
		}
	}
}

// execute извлекает задачу из головы и выполняет её.
func (q *TaskQueue) execute(ctx context.Context, task *domain.Task) {
	q.mu.Lock()
	if q.paused || len(q.pending) == 0 || q.pending[0] != task {
		q.mu.Unlock()
		return
	}
	q.pending = q.pending[1:]
	q.running = task
	task.MarkRunning()
	q.mu.Unlock()

	q.transition(task)
	q.logger.Info("task started", "task_id", task.ID, "command", task.Command)

	if task.Timeout == 0 {
		task.Timeout = q.cfg.DefaultTimeout
	}
	err := q.executor.Execute(ctx, task)

	q.mu.Lock()
	q.running = nil
	var halt bool
	if err != nil {
		task.MarkFailed(err.Error())
		halt = q.cfg.OnFailure == PolicyHalt
		if halt {
			q.paused = true
		}
	} else {
		task.MarkDone()
	}
	q.pushHistoryLocked(task)
	q.mu.Unlock()

	q.notify()
	q.transition(task)

	if err != nil {
		q.logger.Error("task failed", "task_id", task.ID, "command", task.Command, "error", err)
		if halt {
			q.logger.Warn("queue halted after failure", "task_id", task.ID)
		}
		return
	}
	q.logger.Info("task done", "task_id", task.ID, "duration", task.Duration())
}

func (q *TaskQueue) findLocked(id uuid.UUID) *domain.Task {
	if q.running != nil && q.running.ID == id {
		return q.running
	}
	for _, t := range q.pending {
		if t.ID == id {
			return t
		}
	}
	for _, t := range q.history {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (q *TaskQueue) pushHistoryLocked(task *domain.Task) {
	q.history = append(q.history, task)
	if len(q.history) > q.cfg.HistoryLimit {
		q.history = q.history[len(q.history)-q.cfg.HistoryLimit:]
	}
}

// notify будит цикл исполнения после мутации очереди.
func (q *TaskQueue) notify() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *TaskQueue) transition(task *domain.Task) {
	if q.OnTransition != nil {
		q.OnTransition(task)
	}
}
