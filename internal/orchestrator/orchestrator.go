package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/dispatch"
	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/queue"
	"github.com/shaiso/Sequora/internal/recipe"
	"github.com/shaiso/Sequora/internal/telemetry"
)

// Config — конфигурация оркестратора.
type Config struct {
	// Machine — машинная конфигурация.
	Machine *config.Machine

	// Experiment — конфигурация текущего эксперимента.
	Experiment *config.Experiment

	// Dispatcher — канал к инструментам.
	Dispatcher dispatch.Dispatcher

	// DefaultTimeout — таймаут задач без собственного (default: 10m).
	DefaultTimeout time.Duration

	// OnFailure — поведение очередей после FAILED задачи.
	OnFailure queue.FailurePolicy

	// OnTransition — внешний наблюдатель смен статусов задач
	// (метрики, события, журнал). Может быть nil.
	OnTransition func(*domain.Task)

	// OnRunFinished — внешний наблюдатель завершения запусков.
	OnRunFinished func(*domain.Run)

	// Logger — логгер оркестратора.
	Logger *slog.Logger
}

const defaultTaskTimeout = 10 * time.Minute

// Orchestrator владеет очередями подсистем и управляет запусками рецептов.
type Orchestrator struct {
	machine    *config.Machine
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger

	reservation *Reservation
	gate        *UserGate
	registry    *Registry

	onTransition  func(*domain.Task)
	onRunFinished func(*domain.Run)

	mu       sync.RWMutex
	exp      *config.Experiment
	compiler *recipe.Compiler
	queues   map[string]*queue.TaskQueue
	// flowcellOf отображает имя очереди во флоуселл; пусто для микроскопа.
	flowcellOf map[string]string
	runs       map[uuid.UUID]*domain.Run

	wg sync.WaitGroup
}

// New создаёт оркестратор и очереди всех подсистем.
// Исполнение начинается после вызова Start.
func New(cfg Config) (*Orchestrator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}

	o := &Orchestrator{
		machine:       cfg.Machine,
		dispatcher:    cfg.Dispatcher,
		logger:        logger,
		reservation:   NewReservation(),
		gate:          NewUserGate(),
		onTransition:  cfg.OnTransition,
		onRunFinished: cfg.OnRunFinished,
		exp:           cfg.Experiment,
		queues:        make(map[string]*queue.TaskQueue),
		flowcellOf:    make(map[string]string),
		runs:          make(map[uuid.UUID]*domain.Run),
	}
	o.registry = NewRegistry(cfg.Dispatcher, cfg.Machine, o.reservation, o.gate)
	o.compiler = recipe.NewCompiler(cfg.Machine, cfg.Experiment, logger)

	if err := o.buildQueues(timeout, cfg.OnFailure); err != nil {
		return nil, err
	}
	return o, nil
}

// buildQueues создаёт очереди флоуселлов и микроскопа.
func (o *Orchestrator) buildQueues(timeout time.Duration, policy queue.FailurePolicy) error {
	add := func(name, flowcell string, kind domain.SubsystemKind, instrument string) {
		q := queue.New(queue.Config{
			Name:           name,
			Subsystem:      kind,
			Instrument:     instrument,
			DefaultTimeout: timeout,
			OnFailure:      policy,
		}, o.registry, o.logger)
		q.OnTransition = o.handleTransition
		o.queues[name] = q
		o.flowcellOf[name] = flowcell
	}

	for _, fc := range o.machine.Flowcells {
		pump, _, err := o.machine.InstrumentFor(fc, domain.SubsystemPump)
		if err != nil {
			return err
		}
		temp, _, err := o.machine.InstrumentFor(fc, domain.SubsystemTempController)
		if err != nil {
			return err
		}
		add(fc+"/pump", fc, domain.SubsystemPump, pump)
		add(fc+"/temp", fc, domain.SubsystemTempController, temp)
		add(fc+"/control", fc, domain.SubsystemControl, "")
	}

	camera, _, err := o.machine.InstrumentFor("", domain.SubsystemCamera)
	if err != nil {
		return err
	}
	add("microscope/stage", "", domain.SubsystemXStage, "")
	add("microscope/optics", "", domain.SubsystemLaser, "")
	add("microscope/camera", "", domain.SubsystemCamera, camera)
	add("microscope/control", "", domain.SubsystemControl, "")
	return nil
}

// Start запускает циклы исполнения всех очередей.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, q := range o.queues {
		q := q
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			q.Run(ctx)
		}()
	}
	o.logger.Info("orchestrator started", "queues", len(o.queues))
}

// Wait блокируется до остановки всех очередей.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Queue возвращает очередь по имени.
func (o *Orchestrator) Queue(name string) (*queue.TaskQueue, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	q, ok := o.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	return q, nil
}

// Queues возвращает все очереди, отсортированные по имени.
func (o *Orchestrator) Queues() []*queue.TaskQueue {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*queue.TaskQueue, 0, len(o.queues))
	for _, q := range o.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// FlowcellIdle сообщает, свободны ли все очереди флоуселла.
func (o *Orchestrator) FlowcellIdle(flowcell string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for name, q := range o.queues {
		if o.flowcellOf[name] == flowcell && !q.Idle() {
			return false
		}
	}
	return true
}

// FindTask ищет задачу по ID во всех очередях.
func (o *Orchestrator) FindTask(id uuid.UUID) *domain.Task {
	for _, q := range o.Queues() {
		if t := q.Find(id); t != nil {
			return t
		}
	}
	return nil
}

// PauseAll ставит все очереди на паузу. Выполняемые задачи не прерываются.
func (o *Orchestrator) PauseAll() {
	for _, q := range o.Queues() {
		q.Pause()
	}
	o.logger.Info("all queues paused")
}

// ResumeAll возобновляет все очереди.
func (o *Orchestrator) ResumeAll() {
	for _, q := range o.Queues() {
		q.Resume()
	}
	o.logger.Info("all queues resumed")
}

// PauseFlowcell ставит на паузу очереди одного флоуселла.
func (o *Orchestrator) PauseFlowcell(flowcell string) error {
	return o.forFlowcell(flowcell, (*queue.TaskQueue).Pause)
}

// ResumeFlowcell возобновляет очереди одного флоуселла.
func (o *Orchestrator) ResumeFlowcell(flowcell string) error {
	return o.forFlowcell(flowcell, (*queue.TaskQueue).Resume)
}

func (o *Orchestrator) forFlowcell(flowcell string, fn func(*queue.TaskQueue)) error {
	if !o.machine.HasFlowcell(flowcell) {
		return fmt.Errorf("%w: %s", ErrUnknownFlowcell, flowcell)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	for name, q := range o.queues {
		if o.flowcellOf[name] == flowcell {
			fn(q)
		}
	}
	return nil
}

// Confirm подтверждает сообщение задачи USER.
func (o *Orchestrator) Confirm(taskID uuid.UUID) error {
	return o.gate.Confirm(taskID)
}

// AwaitingConfirmation возвращает ID задач, ждущих оператора.
func (o *Orchestrator) AwaitingConfirmation() []uuid.UUID {
	return o.gate.Pending()
}

// MicroscopeOwner возвращает флоуселл, за которым зарезервирован
// микроскоп, пусто если микроскоп свободен.
func (o *Orchestrator) MicroscopeOwner() string {
	return o.reservation.Owner()
}

// Experiment возвращает конфигурацию текущего эксперимента.
func (o *Orchestrator) Experiment() *config.Experiment {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.exp
}

// NewExperiment заменяет конфигурацию эксперимента.
// Отказывает с ErrBusy, пока в очередях остаются задачи: текущий
// эксперимент должен завершиться или быть очищен через ClearAll.
func (o *Orchestrator) NewExperiment(exp *config.Experiment) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for name, q := range o.queues {
		if !q.Idle() {
			return fmt.Errorf("%w: очередь %s не пуста", ErrBusy, name)
		}
	}
	o.exp = exp
	o.compiler = recipe.NewCompiler(o.machine, exp, o.logger)
	o.logger.Info("experiment loaded", "name", exp.Name, "flowcells", exp.Flowcells)
	return nil
}

// ROIs возвращает копию таблицы ROI флоуселла.
func (o *Orchestrator) ROIs(flowcell string) ([]domain.ROI, error) {
	if !o.machine.HasFlowcell(flowcell) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlowcell, flowcell)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	rois := o.exp.ROIs[flowcell]
	out := make([]domain.ROI, len(rois))
	copy(out, rois)
	return out, nil
}

// SetROI добавляет или замещает ROI флоуселла.
/// Отказывает с ErrBusy, пока у флоуселла остаются задачи:
// запланированные цепочки съёмки рассчитаны на текущие ROI.
func (o *Orchestrator) SetROI(flowcell string, roi domain.ROI) error {
	if !o.machine.HasFlowcell(flowcell) {
		return fmt.Errorf("%w: %s", ErrUnknownFlowcell, flowcell)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.flowcellBusyLocked(flowcell); err != nil {
		return err
	}
	if err := o.exp.SetROI(flowcell, roi); err != nil {
		return err
	}
	o.logger.Info("roi set", "flowcell", flowcell, "roi", roi.Name)
	return nil
}

// RemoveROI удаляет ROI флоуселла по имени.
func (o *Orchestrator) RemoveROI(flowcell, name string) error {
	if !o.machine.HasFlowcell(flowcell) {
		return fmt.Errorf("%w: %s", ErrUnknownFlowcell, flowcell)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.flowcellBusyLocked(flowcell); err != nil {
		return err
	}
	if !o.exp.RemoveROI(flowcell, name) {
		return fmt.Errorf("%w: %s/%s", ErrROINotFound, flowcell, name)
	}
	o.logger.Info("roi removed", "flowcell", flowcell, "roi", name)
	return nil
}

// flowcellBusyLocked отказывает, пока у флоуселла остаются задачи.
// Очереди микроскопа общие, их задачи относятся к флоуселлу через
// аргумент flowcell задач reserve/release, обрамляющих каждую цепочку.
func (o *Orchestrator) flowcellBusyLocked(flowcell string) error {
	for name, q := range o.queues {
		owner := o.flowcellOf[name]
		if owner == flowcell && !q.Idle() {
			return fmt.Errorf("%w: очередь %s не пуста", ErrBusy, name)
		}
		if owner != "" {
			continue
		}
		tasks := q.Pending()
		if t := q.Running(); t != nil {
			tasks = append(tasks, t)
		}
		for _, t := range tasks {
			if fc, ok := t.Args["flowcell"].(string); ok && fc == flowcell {
				return fmt.Errorf("%w: очередь %s выполняет задачи флоуселла %s", ErrBusy, name, flowcell)
			}
		}
	}
	return nil
}

// ClearAll отменяет все ожидающие задачи всех очередей и снимает
// резервацию микроскопа: задача release могла быть отменена вместе
// с остальными, оператор начинает с чистого состояния.
func (o *Orchestrator) ClearAll() int {
	total := 0
	for _, q := range o.Queues() {
		total += q.Clear()
	}
	o.reservation.ForceRelease()
	return total
}

// Runs возвращает запуски рецептов, новые первыми.
func (o *Orchestrator) Runs() []*domain.Run {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*domain.Run, 0, len(o.runs))
	for _, r := range o.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Run возвращает запуск по ID.
func (o *Orchestrator) Run(id uuid.UUID) (*domain.Run, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, nil
}

// handleTransition обновляет метрики и пробрасывает смену статуса
// задачи внешнему наблюдателю.
func (o *Orchestrator) handleTransition(task *domain.Task) {
	if task.IsFinished() {
		telemetry.TasksTotal.WithLabelValues(task.Queue, string(task.Status())).Inc()
	}
	if q, err := o.Queue(task.Queue); err == nil {
		telemetry.QueueDepth.WithLabelValues(task.Queue).Set(float64(q.Len()))
	}
	if o.onTransition != nil {
		o.onTransition(task)
	}
}

// watchRun ждёт завершения всех задач запуска и финализирует его статус.
func (o *Orchestrator) watchRun(run *domain.Run) {
	defer o.wg.Done()

	for _, t := range run.Tasks {
		<-t.Done()
	}

	failed := ""
	for _, t := range run.Tasks {
		if status := t.Status(); status == domain.TaskStatusFailed || status == domain.TaskStatusCancelled {
			failed = fmt.Sprintf("задача %s (%s): %s", t.ID, t.Command, t.Err())
			break
		}
	}
	if failed != "" {
		run.MarkFailed(failed)
	} else {
		run.MarkDone()
	}

	telemetry.RunsTotal.WithLabelValues(run.Flowcell, string(run.Status())).Inc()
	o.logger.Info("run finished",
		"run_id", run.ID, "recipe", run.Recipe, "status", run.Status(), "error", run.Err())
	if o.onRunFinished != nil {
		o.onRunFinished(run)
	}
}
