package recipe

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/domain"
)

// Compiler разворачивает рецепт в плоский список шагов для одного
// флоуселла. Ссылки на реагенты и ROI разрешаются по конфигурации
// эксперимента, параметры валидируются по машинным таблицам.
//
// Компиляция детерминирована и не имеет побочных эффектов: одна и та
// же пара (рецепт, конфигурация) всегда даёт один и тот же список
// шагов. Ошибки шагов собираются все сразу, с номерами цикла и шага.
type Compiler struct {
	machine *config.Machine
	exp     *config.Experiment
	logger  *slog.Logger
}

// NewCompiler создаёт компилятор рецептов.
func NewCompiler(machine *config.Machine, exp *config.Experiment, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{machine: machine, exp: exp, logger: logger}
}

// state — состояние прохода по шагам одного флоуселла.
type state struct {
	flowcell    string
	cycle       int
	totalCycles int
	steps       []domain.Step
	lastReagent *domain.Reagent
}

// Compile компилирует рецепт для флоуселла. cycles перекрывает число
// циклов рецепта; cycles <= 0 означает использовать значение рецепта.
func (c *Compiler) Compile(flowcell string, rec *Recipe, cycles int) ([]domain.Step, error) {
	if !c.machine.HasFlowcell(flowcell) {
		return nil, fmt.Errorf("compile %s: %w", rec.Name, config.ErrUnknownFlowcell)
	}
	if cycles <= 0 {
		cycles = rec.Cycles
	}

	st := &state{flowcell: flowcell, totalCycles: cycles}
	var errs []error

	for cycle := 1; cycle <= cycles; cycle++ {
		st.cycle = cycle
		for n, entry := range rec.Steps {
			if err := c.compileEntry(st, entry); err != nil {
				errs = append(errs, fmt.Errorf("%s: цикл %d, шаг %d (%s): %w",
					rec.Name, cycle, n+1, entry.Verb, err))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	c.logger.Debug("recipe compiled",
		"recipe", rec.Name, "flowcell", flowcell, "cycles", cycles, "steps", len(st.steps))
	return st.steps, nil
}

func (c *Compiler) compileEntry(st *state, entry Entry) error {
	switch strings.ToUpper(entry.Verb) {
	case "VALVE":
		return c.compileValve(st, entry.Params)
	case "PUMP":
		return c.compilePump(st, entry.Params)
	case "TEMP", "TEMPERATURE":
		return c.compileTemperature(st, entry.Params)
	case "HOLD":
		return c.compileHold(st, entry.Params)
	case "WAIT":
		return c.compileWait(st, entry.Params)
	case "USER":
		return c.compileUser(st, entry.Params)
	case "IMAGE":
		return c.compileImaging(st, domain.StepImage, entry.Params)
	case "EXPOSE":
		return c.compileImaging(st, domain.StepExpose, entry.Params)
	case "FOCUS":
		return c.compileImaging(st, domain.StepFocus, entry.Params)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownVerb, entry.Verb)
	}
}

// compileValve не порождает шага: выбранный реагент подставляется
// в следующую прокачку.
func (c *Compiler) compileValve(st *state, params any) error {
	switch p := params.(type) {
	case string:
		reagent, ok := c.exp.ReagentByName(st.flowcell, p)
		if !ok {
			return &UnresolvedReferenceError{Kind: "reagent", Name: p, Flowcell: st.flowcell}
		}
		st.lastReagent = reagent
		return nil
	case int:
		return c.valveByPort(st, p)
	case map[string]any:
		if name, ok := p["reagent"].(string); ok {
			return c.compileValve(st, name)
		}
		if port, ok := asInt(p["port"]); ok {
			return c.valveByPort(st, port)
		}
		return fmt.Errorf("%w: VALVE ожидает реагент или порт", ErrBadParams)
	default:
		return fmt.Errorf("%w: VALVE ожидает реагент или порт, получено %T", ErrBadParams, params)
	}
}

func (c *Compiler) valveByPort(st *state, port int) error {
	valve, _, err := c.machine.InstrumentFor(st.flowcell, domain.SubsystemValve)
	if err != nil {
		return err
	}
	if err := c.machine.ValidateArgs(valve, "select", map[string]any{"port": port}); err != nil {
		return err
	}
	// Порт задан напрямую, без объявленного реагента.
	st.lastReagent = &domain.Reagent{
		Flowcell: st.flowcell,
		Name:     fmt.Sprintf("port_%d", port),
		Port:     port,
		FlowRate: c.exp.Pump.PumpFlowRate,
	}
	return nil
}

func (c *Compiler) compilePump(st *state, params any) error {
	reagent := st.lastReagent
	volume := c.exp.Pump.PumpVolume
	flowRate := 0.0
	reverse := false

	switch p := params.(type) {
	case int, float64:
		volume, _ = asFloat(p)
	case map[string]any:
		if name, ok := p["reagent"].(string); ok {
			r, found := c.exp.ReagentByName(st.flowcell, name)
			if !found {
				return &UnresolvedReferenceError{Kind: "reagent", Name: name, Flowcell: st.flowcell}
			}
			reagent = r
		}
		if v, ok := asFloat(p["volume"]); ok {
			volume = v
		}
		if v, ok := asFloat(p["flow_rate"]); ok {
			flowRate = v
		}
		if v, ok := p["reverse"].(bool); ok {
			reverse = v
		}
	default:
		return fmt.Errorf("%w: PUMP ожидает объём или словарь параметров, получено %T", ErrBadParams, params)
	}

	if reagent == nil {
		return fmt.Errorf("%w: PUMP без реагента и без предшествующего VALVE", ErrBadParams)
	}
	st.lastReagent = reagent
	if flowRate == 0 {
		flowRate = reagent.FlowRate
	}

	pump, _, err := c.machine.InstrumentFor(st.flowcell, domain.SubsystemPump)
	if err != nil {
		return err
	}
	args := map[string]any{"volume": volume, "flow_rate": flowRate}
	if err := c.machine.ValidateArgs(pump, "pump", args); err != nil {
		return err
	}

	valve, _, err := c.machine.InstrumentFor(st.flowcell, domain.SubsystemValve)
	if err != nil {
		return err
	}
	if err := c.machine.ValidateArgs(valve, "select", map[string]any{"port": reagent.Port}); err != nil {
		return err
	}

	c.emit(st, domain.Step{
		Kind: domain.StepPump,
		Args: map[string]any{
			"reagent":   reagent.Name,
			"port":      reagent.Port,
			"volume":    volume,
			"flow_rate": flowRate,
			"reverse":   reverse,
			"pause_sec": reagent.PauseSec,
		},
		Description: fmt.Sprintf("pump %g uL of %s", volume, reagent.Name),
	})
	return nil
}

func (c *Compiler) compileTemperature(st *state, params any) error {
	var temperature float64
	switch p := params.(type) {
	case int, float64:
		temperature, _ = asFloat(p)
	case map[string]any:
		v, ok := asFloat(p["temperature"])
		if !ok {
			return fmt.Errorf("%w: TEMP без температуры", ErrBadParams)
		}
		temperature = v
	default:
		return fmt.Errorf("%w: TEMP ожидает температуру, получено %T", ErrBadParams, params)
	}

	tc, _, err := c.machine.InstrumentFor(st.flowcell, domain.SubsystemTempController)
	if err != nil {
		return err
	}
	args := map[string]any{"temperature": temperature}
	if err := c.machine.ValidateArgs(tc, "set_temperature", args); err != nil {
		return err
	}

	c.emit(st, domain.Step{
		Kind:        domain.StepTemperature,
		Args:        args,
		Description: fmt.Sprintf("set temperature to %g C", temperature),
	})
	return nil
}

func (c *Compiler) compileHold(st *state, params any) error {
	var duration float64
	switch p := params.(type) {
	case int, float64:
		duration, _ = asFloat(p)
	case map[string]any:
		v, ok := asFloat(p["duration"])
		if !ok {
			return fmt.Errorf("%w: HOLD без длительности", ErrBadParams)
		}
		duration = v
	default:
		return fmt.Errorf("%w: HOLD ожидает длительность, получено %T", ErrBadParams, params)
	}
	if duration <= 0 {
		return fmt.Errorf("%w: HOLD с неположительной длительностью %g", ErrBadParams, duration)
	}

	c.emit(st, domain.Step{
		Kind:        domain.StepHold,
		Args:        map[string]any{"duration_sec": duration},
		Description: fmt.Sprintf("hold for %g s", duration),
	})
	return nil
}

// compileWait поддерживает единственное событие: освобождение микроскопа.
func (c *Compiler) compileWait(st *state, params any) error {
	event := "microscope"
	switch p := params.(type) {
	case nil:
	case string:
		if p != "microscope" {
			c.logger.Warn("wait поддерживает только микроскоп", "requested", p)
		}
	case map[string]any:
		if e, ok := p["event"].(string); ok && e != "microscope" {
			c.logger.Warn("wait поддерживает только микроскоп", "requested", e)
		}
	default:
		return fmt.Errorf("%w: WAIT ожидает имя события, получено %T", ErrBadParams, params)
	}

	c.emit(st, domain.Step{
		Kind:        domain.StepWait,
		Args:        map[string]any{"event": event},
		Description: "wait for microscope",
	})
	return nil
}

func (c *Compiler) compileUser(st *state, params any) error {
	message := ""
	var timeout float64
	switch p := params.(type) {
	case string:
		message = p
	case map[string]any:
		if m, ok := p["message"].(string); ok {
			message = m
		}
		if v, ok := asFloat(p["timeout"]); ok {
			timeout = v
		}
	default:
		return fmt.Errorf("%w: USER ожидает сообщение, получено %T", ErrBadParams, params)
	}
	if message == "" {
		return fmt.Errorf("%w: USER без сообщения", ErrBadParams)
	}

	args := map[string]any{"message": message}
	if timeout > 0 {
		args["timeout_sec"] = timeout
	}
	c.emit(st, domain.Step{
		Kind:        domain.StepUser,
		Args:        args,
		Description: fmt.Sprintf("wait for operator: %s", message),
	})
	return nil
}

// compileImaging разворачивает шаг съёмки по ROI флоуселла.
// Без объявленных ROI шаг не порождает задач.
func (c *Compiler) compileImaging(st *state, kind domain.StepKind, params any) error {
	var rois []domain.ROI
	override := map[string]any{}

	switch p := params.(type) {
	case nil:
	case int:
		switch kind {
		case domain.StepImage:
			override["nz"] = p
		case domain.StepExpose:
			override["n_exposures"] = p
		default:
			return fmt.Errorf("%w: FOCUS не принимает скалярный параметр", ErrBadParams)
		}
	case map[string]any:
		if name, ok := p["roi"].(string); ok {
			roi, found := c.exp.ROIByName(st.flowcell, name)
			if !found {
				return &UnresolvedReferenceError{Kind: "roi", Name: name, Flowcell: st.flowcell}
			}
			rois = []domain.ROI{*roi}
		}
		for k, v := range p {
			if k != "roi" {
				override[k] = v
			}
		}
	default:
		return fmt.Errorf("%w: %s ожидает параметры съёмки, получено %T", ErrBadParams, kind, params)
	}

	if rois == nil {
		rois = append(rois, c.exp.ROIs[st.flowcell]...)
	}
	if len(rois) == 0 {
		c.logger.Warn("шаг съёмки без ROI пропущен", "flowcell", st.flowcell, "kind", kind)
		return nil
	}

	for i := range rois {
		roi := rois[i]
		c.applyImagingOverride(&roi, kind, override)
		if err := c.validateROI(&roi); err != nil {
			return fmt.Errorf("ROI %s: %w", roi.Name, err)
		}
		c.emit(st, domain.Step{
			Kind:        kind,
			ROI:         &roi,
			Description: fmt.Sprintf("%s ROI %s", kind, roi.Name),
		})
	}
	return nil
}

// applyImagingOverride накладывает параметры шага поверх параметров ROI.
func (c *Compiler) applyImagingOverride(roi *domain.ROI, kind domain.StepKind, override map[string]any) {
	if len(override) == 0 {
		return
	}

	var optics *domain.Optics
	switch kind {
	case domain.StepImage:
		optics = &roi.Image.Optics
		if v, ok := asInt(override["nz"]); ok {
			roi.Image.NZ = v
			roi.Stage.NZ = v
		}
	case domain.StepExpose:
		optics = &roi.Expose.Optics
		if v, ok := asInt(override["n_exposures"]); ok {
			roi.Expose.NExposures = v
		}
	case domain.StepFocus:
		optics = &roi.Focus.Optics
		if v, ok := override["routine"].(string); ok {
			roi.Focus.Routine = v
		}
	}

	if v, ok := asFloat(override["exposure"]); ok {
		optics.Exposure = v
	}
	if v, ok := asFloat(override["laser_power"]); ok {
		optics.LaserPower = v
	}
	if v, ok := override["laser_color"].(string); ok {
		optics.LaserColor = v
	}
	if v, ok := override["filter"].(string); ok {
		optics.Filter = v
	}
}

// validateROI проверяет область стейджа и оптику по машинным таблицам.
func (c *Compiler) validateROI(roi *domain.ROI) error {
	checks := []struct {
		kind domain.SubsystemKind
		cmd  string
		args map[string]any
	}{
		{domain.SubsystemXStage, "move", map[string]any{"position": roi.Stage.XInit}},
		{domain.SubsystemXStage, "move", map[string]any{"position": roi.Stage.XLast}},
		{domain.SubsystemYStage, "move", map[string]any{"position": roi.Stage.YInit}},
		{domain.SubsystemYStage, "move", map[string]any{"position": roi.Stage.YLast}},
		{domain.SubsystemZStage, "move", map[string]any{"position": roi.Stage.ZInit}},
		{domain.SubsystemZStage, "move", map[string]any{"position": roi.Stage.ZLast()}},
	}
	for _, check := range checks {
		inst, _, err := c.machine.InstrumentFor(roi.Flowcell, check.kind)
		if err != nil {
			return err
		}
		if err := c.machine.ValidateArgs(inst, check.cmd, check.args); err != nil {
			return err
		}
	}

	if !domain.ValidFocusRoutine(roi.Focus.Routine) {
		return fmt.Errorf("%w: неизвестная процедура фокуса %q", ErrBadParams, roi.Focus.Routine)
	}
	return nil
}

// emit добавляет шаг в конец списка, сцепляя его с предыдущим.
// Шаги одного флоуселла выполняются строго в порядке рецепта.
func (c *Compiler) emit(st *state, step domain.Step) {
	step.Index = len(st.steps)
	step.Flowcell = st.flowcell
	if st.totalCycles > 1 {
		step.Cycle = st.cycle
	}
	if step.Index > 0 {
		step.DependsOn = []int{step.Index - 1}
	}
	st.steps = append(st.steps, step)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x == float64(int(x)) {
			return int(x), true
		}
	}
	return 0, false
}
