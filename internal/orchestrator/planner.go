package orchestrator

import (
	"fmt"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/recipe"
)

// plannedTask — задача с адресом очереди, ещё не поставленная.
type plannedTask struct {
	task  *domain.Task
	queue string
}

// plan — результат планирования запуска: все задачи со связанными
// зависимостями, в порядке постановки.
type plan struct {
	run   *domain.Run
	tasks []plannedTask
}

// RunRecipe компилирует рецепт и атомарно ставит его задачи в очереди.
//
// Сначала строится весь план: задачи флоуселла, цепочки съёмки
// микроскопа, рёбра зависимостей. Любая ошибка на этом этапе
// возвращается до постановки, очереди остаются нетронутыми.
func (o *Orchestrator) RunRecipe(flowcell string, rec *recipe.Recipe, cycles int) (*domain.Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.machine.HasFlowcell(flowcell) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlowcell, flowcell)
	}

	steps, err := o.compiler.Compile(flowcell, rec, cycles)
	if err != nil {
		return nil, err
	}

	p, err := o.buildPlan(flowcell, rec, cycles, steps)
	if err != nil {
		return nil, err
	}

	// План собран целиком, постановка уже не может отказать.
	for _, pt := range p.tasks {
		o.queues[pt.queue].Enqueue(pt.task)
	}
	o.runs[p.run.ID] = p.run

	o.wg.Add(1)
	go o.watchRun(p.run)

	o.logger.Info("recipe enqueued",
		"run_id", p.run.ID, "recipe", rec.Name, "flowcell", flowcell, "tasks", len(p.tasks))
	return p.run, nil
}

// RunRecipeFile загружает файл рецептов и запускает рецепт name.
// Пустое имя означает первый рецепт файла.
func (o *Orchestrator) RunRecipeFile(flowcell, path, name string, cycles int) (*domain.Run, error) {
	recipes, err := recipe.Load(path)
	if err != nil {
		return nil, err
	}
	rec := recipes[0]
	if name != "" {
		r, ok := recipe.ByName(recipes, name)
		if !ok {
			return nil, &recipe.UnresolvedReferenceError{Kind: "recipe", Name: name, Flowcell: flowcell}
		}
		rec = r
	}
	return o.RunRecipe(flowcell, rec, cycles)
}

// buildPlan переводит скомпилированные шаги в задачи с зависимостями.
func (o *Orchestrator) buildPlan(flowcell string, rec *recipe.Recipe, cycles int, steps []domain.Step) (*plan, error) {
	run := domain.NewRun(flowcell, rec.Name, cycles)
	p := &plan{run: run}

	// stepTail — последняя задача каждого шага, цель входящих рёбер.
	stepTail := make([]*domain.Task, len(steps))

	for i := range steps {
		step := &steps[i]

		var deps []*domain.Task
		for _, idx := range step.DependsOn {
			deps = append(deps, stepTail[idx])
		}

		tasks, err := o.buildStepTasks(flowcell, step, deps)
		if err != nil {
			return nil, fmt.Errorf("шаг %d (%s): %w", step.Index, step.Kind, err)
		}
		for _, pt := range tasks {
			pt.task.RunID = run.ID
			run.Tasks = append(run.Tasks, pt.task)
		}
		p.tasks = append(p.tasks, tasks...)
		stepTail[step.Index] = tasks[len(tasks)-1].task
	}
	return p, nil
}

// buildStepTasks строит задачи одного шага.
// deps прицепляются к первой задаче, остальные сцепляются внутри шага.
func (o *Orchestrator) buildStepTasks(flowcell string, step *domain.Step, deps []*domain.Task) ([]plannedTask, error) {
	switch step.Kind {
	case domain.StepPump:
		pump, _, err := o.machine.InstrumentFor(flowcell, domain.SubsystemPump)
		if err != nil {
			return nil, err
		}
		task := o.newTask(domain.SubsystemPump, pump, "pump", withFlowcell(step.Args, flowcell), step, deps)
		return []plannedTask{{task, flowcell + "/pump"}}, nil

	case domain.StepTemperature:
		tc, _, err := o.machine.InstrumentFor(flowcell, domain.SubsystemTempController)
		if err != nil {
			return nil, err
		}
		task := o.newTask(domain.SubsystemTempController, tc, "set_temperature", withFlowcell(step.Args, flowcell), step, deps)
		return []plannedTask{{task, flowcell + "/temp"}}, nil

	case domain.StepHold, domain.StepWait, domain.StepUser:
		task := o.newTask(domain.SubsystemControl, "", string(step.Kind), withFlowcell(step.Args, flowcell), step, deps)
		return []plannedTask{{task, flowcell + "/control"}}, nil

	case domain.StepImage, domain.StepExpose, domain.StepFocus:
		return o.buildImagingTasks(flowcell, step, deps)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, step.Kind)
	}
}

// buildImagingTasks разворачивает шаг съёмки в цепочку задач микроскопа.
//
// Цепочка обёрнута в резервацию: reserve, фокусная плоскость, оптика,
// обход тайлов ROI (позиционирование и кадр на каждый тайл), release.
// Каждая задача зависит от предыдущей, внешние зависимости шага входят
// в reserve. Следующий шаг флоуселла зависит от release; сам release
// помечен AlwaysRun и диспетчеризуется даже при отказе в середине
// цепочки, поэтому микроскоп возвращается и после аварии.
func (o *Orchestrator) buildImagingTasks(flowcell string, step *domain.Step, deps []*domain.Task) ([]plannedTask, error) {
	roi := step.ROI
	if roi == nil {
		return nil, fmt.Errorf("шаг съёмки без ROI")
	}

	xStage, _, err := o.machine.InstrumentFor("", domain.SubsystemXStage)
	if err != nil {
		return nil, err
	}
	yStage, _, err := o.machine.InstrumentFor("", domain.SubsystemYStage)
	if err != nil {
		return nil, err
	}
	zStage, _, err := o.machine.InstrumentFor("", domain.SubsystemZStage)
	if err != nil {
		return nil, err
	}
	laser, _, err := o.machine.InstrumentFor("", domain.SubsystemLaser)
	if err != nil {
		return nil, err
	}
	wheel, _, err := o.machine.InstrumentFor("", domain.SubsystemFilterWheel)
	if err != nil {
		return nil, err
	}
	camera, _, err := o.machine.InstrumentFor("", domain.SubsystemCamera)
	if err != nil {
		return nil, err
	}

	optics, frames := imagingParams(step)
	captureBase := map[string]any{
		"exposure": optics.Exposure,
		"frames":   frames,
		"roi":      roi.Name,
		"mode":     string(step.Kind),
	}
	laserArgs := map[string]any{"power": optics.LaserPower, "color": optics.LaserColor}
	wheelArgs := map[string]any{"filter": optics.Filter}

	// Ошибки параметров всплывают при планировании, до постановки.
	if err := o.machine.ValidateArgs(camera, "capture", map[string]any{
		"exposure": optics.Exposure, "frames": frames,
	}); err != nil {
		return nil, err
	}
	if err := o.machine.ValidateArgs(laser, "set_power", laserArgs); err != nil {
		return nil, err
	}
	if err := o.machine.ValidateArgs(wheel, "select", wheelArgs); err != nil {
		return nil, err
	}

	fc := map[string]any{"flowcell": flowcell}
	type link struct {
		queue      string
		subsystem  domain.SubsystemKind
		instrument string
		command    string
		args       map[string]any
	}
	chain := []link{
		{"microscope/control", domain.SubsystemControl, "", "reserve", fc},
		{"microscope/stage", domain.SubsystemZStage, zStage, "move", map[string]any{"position": roi.Stage.ZInit}},
		{"microscope/optics", domain.SubsystemLaser, laser, "set_power", laserArgs},
		{"microscope/optics", domain.SubsystemFilterWheel, wheel, "select", wheelArgs},
	}

	addTile := func(x, y float64, capture map[string]any) {
		chain = append(chain,
			link{"microscope/stage", domain.SubsystemXStage, xStage, "move", map[string]any{"position": x}},
			link{"microscope/stage", domain.SubsystemYStage, yStage, "move", map[string]any{"position": y}},
			link{"microscope/camera", domain.SubsystemCamera, camera, "capture", capture},
		)
	}

	switch step.Kind {
	case domain.StepImage:
		// Обход региона тайлами поля зрения: ряды по Y, внутри ряда по X.
		for j := 0; j < roi.Stage.NY(); j++ {
			for i := 0; i < roi.Stage.NX(); i++ {
				tile := config.MergeArgs(captureBase, map[string]any{"tile_x": i, "tile_y": j})
				addTile(roi.Stage.TileX(i), roi.Stage.TileY(j), tile)
			}
		}
	case domain.StepFocus:
		// Фокусировка идёт в центре ROI, один кадр.
		x := (roi.Stage.XLast-roi.Stage.XInit)/2 + roi.Stage.XInit
		y := (roi.Stage.YLast-roi.Stage.YInit)/2 + roi.Stage.YInit
		addTile(x, y, captureBase)
	default:
		addTile(roi.Stage.XInit, roi.Stage.YInit, captureBase)
	}

	chain = append(chain, link{"microscope/control", domain.SubsystemControl, "", "release", fc})

	var out []plannedTask
	prev := deps
	for _, l := range chain {
		task := o.newTask(l.subsystem, l.instrument, l.command, l.args, step, prev)
		out = append(out, plannedTask{task, l.queue})
		prev = []*domain.Task{task}
	}
	// Финализатор цепочки: release выполняется и при отказе зависимостей.
	out[len(out)-1].task.AlwaysRun = true
	return out, nil
}

// imagingParams возвращает оптику и число кадров для шага съёмки.
func imagingParams(step *domain.Step) (domain.Optics, int) {
	switch step.Kind {
	case domain.StepExpose:
		return step.ROI.Expose.Optics, step.ROI.Expose.NExposures
	case domain.StepFocus:
		return step.ROI.Focus.Optics, 1
	default:
		frames := step.ROI.Image.NZ
		if frames < 1 {
			frames = 1
		}
		return step.ROI.Image.Optics, frames
	}
}

func (o *Orchestrator) newTask(kind domain.SubsystemKind, instrument, command string, args map[string]any, step *domain.Step, deps []*domain.Task) *domain.Task {
	task := domain.NewTask(kind, instrument, command, args)
	task.Description = step.Description
	task.DependsOn = deps
	return task
}

// withFlowcell добавляет флоуселл к аргументам шага, не трогая исходные.
func withFlowcell(args map[string]any, flowcell string) map[string]any {
	return config.MergeArgs(args, map[string]any{"flowcell": flowcell})
}
