package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/dispatch"
	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/queue"
	"github.com/shaiso/Sequora/internal/telemetry"
)

// Registry — реестр исполнителей по команде задачи.
//
// Команды инструментов уходят в диспетчер, управляющие команды
// (hold, wait, user, reserve, release) исполняются локально.
// Registry реализует queue.Executor и отдаётся всем очередям.
type Registry struct {
	executors map[string]queue.Executor
}

// NewRegistry создаёт реестр со стандартным набором исполнителей.
func NewRegistry(d dispatch.Dispatcher, machine *config.Machine, res *Reservation, gate *UserGate) *Registry {
	r := &Registry{executors: make(map[string]queue.Executor)}

	hw := &dispatchExecutor{d: d}
	for _, command := range []string{"set_temperature", "move", "capture", "set_power", "select", "set_state"} {
		r.Register(command, hw)
	}
	r.Register("pump", &pumpExecutor{d: d, machine: machine})
	r.Register("hold", &holdExecutor{})
	r.Register("wait", &waitExecutor{res: res})
	r.Register("user", &userExecutor{gate: gate})
	r.Register("reserve", &reserveExecutor{res: res})
	r.Register("release", &releaseExecutor{res: res})
	return r
}

// Register добавляет исполнителя для команды.
func (r *Registry) Register(command string, ex queue.Executor) {
	r.executors[command] = ex
}

// Execute выполняет задачу исполнителем её команды.
func (r *Registry) Execute(ctx context.Context, task *domain.Task) error {
	ex, ok := r.executors[task.Command]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, task.Command)
	}
	return ex.Execute(ctx, task)
}

// dispatchExecutor отправляет команду задачи инструменту как есть.
type dispatchExecutor struct {
	d dispatch.Dispatcher
}

func (e *dispatchExecutor) Execute(ctx context.Context, task *domain.Task) error {
	out, err := e.d.Dispatch(ctx, dispatch.Command{
		Instrument: task.Instrument,
		Name:       task.Command,
		Args:       task.Args,
	}, task.Timeout)
	if out != nil {
		telemetry.ObserveDispatch(task.Instrument, task.Command, out.Elapsed)
	}
	return err
}

// pumpExecutor выполняет прокачку: выбор порта клапана, затем насос.
// Пауза после прокачки (инкубация реагента в канале) входит в задачу.
type pumpExecutor struct {
	d       dispatch.Dispatcher
	machine *config.Machine
}

func (e *pumpExecutor) Execute(ctx context.Context, task *domain.Task) error {
	flowcell := taskFlowcell(task)

	valve, _, err := e.machine.InstrumentFor(flowcell, domain.SubsystemValve)
	if err != nil {
		return err
	}
	if _, err := e.d.Dispatch(ctx, dispatch.Command{
		Instrument: valve,
		Name:       "select",
		Args:       map[string]any{"port": task.Args["port"]},
	}, task.Timeout); err != nil {
		return err
	}

	args := map[string]any{
		"volume":    task.Args["volume"],
		"flow_rate": task.Args["flow_rate"],
	}
	if reverse, ok := task.Args["reverse"].(bool); ok && reverse {
		args["reverse"] = true
	}
	if _, err := e.d.Dispatch(ctx, dispatch.Command{
		Instrument: task.Instrument,
		Name:       "pump",
		Args:       args,
	}, task.Timeout); err != nil {
		return err
	}

	if pause, ok := task.Args["pause_sec"].(float64); ok && pause > 0 {
		return sleepCtx(ctx, time.Duration(pause*float64(time.Second)))
	}
	return nil
}

// holdExecutor держит флоуселл заданное время (инкубация).
type holdExecutor struct{}

func (e *holdExecutor) Execute(ctx context.Context, task *domain.Task) error {
	duration, ok := task.Args["duration_sec"].(float64)
	if !ok || duration <= 0 {
		return fmt.Errorf("hold: некорректная длительность %v", task.Args["duration_sec"])
	}
	return sleepCtx(ctx, time.Duration(duration*float64(time.Second)))
}

// waitExecutor ждёт освобождения микроскопа, не резервируя его.
type waitExecutor struct {
	res *Reservation
}

func (e *waitExecutor) Execute(ctx context.Context, task *domain.Task) error {
	return e.res.WaitAvailable(ctx, taskFlowcell(task))
}

// userExecutor ждёт подтверждения оператора.
type userExecutor struct {
	gate *UserGate
}

func (e *userExecutor) Execute(ctx context.Context, task *domain.Task) error {
	if timeout, ok := task.Args["timeout_sec"].(float64); ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout*float64(time.Second)))
		defer cancel()
	}
	if err := e.gate.Wait(ctx, task.ID); err != nil {
		return fmt.Errorf("подтверждение оператора не получено: %w", err)
	}
	return nil
}

// reserveExecutor резервирует микроскоп за флоуселлом задачи.
type reserveExecutor struct {
	res *Reservation
}

func (e *reserveExecutor) Execute(ctx context.Context, task *domain.Task) error {
	return e.res.Reserve(ctx, taskFlowcell(task))
}

// releaseExecutor освобождает микроскоп.
type releaseExecutor struct {
	res *Reservation
}

func (e *releaseExecutor) Execute(ctx context.Context, task *domain.Task) error {
	e.res.Release(taskFlowcell(task))
	return nil
}

// taskFlowcell возвращает флоуселл задачи из её аргументов.
func taskFlowcell(task *domain.Task) string {
	if fc, ok := task.Args["flowcell"].(string); ok {
		return fc
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
