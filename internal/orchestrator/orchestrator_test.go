package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/dispatch"
	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/queue"
	"github.com/shaiso/Sequora/internal/recipe"
)

func testOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *dispatch.Emulated) {
	t.Helper()

	machine, err := config.LoadMachine("testdata/machine.yaml")
	if err != nil {
		t.Fatalf("LoadMachine: %v", err)
	}
	exp, err := config.LoadExperiment("testdata/experiment.toml")
	if err != nil {
		t.Fatalf("LoadExperiment: %v", err)
	}

	emu := dispatch.NewEmulated(nil)
	cfg.Machine = machine
	cfg.Experiment = exp
	cfg.Dispatcher = emu
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 5 * time.Second
	}

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o.Start(ctx)
	return o, emu
}

func waitRun(t *testing.T, run *domain.Run, want domain.RunStatus) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if run.Status().IsTerminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("run %s did not finish, status %s", run.ID, run.Status())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if run.Status() != want {
		t.Fatalf("run status = %s (%s), want %s", run.Status(), run.Err(), want)
	}
}

func fluidicsRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name:   "fluidics",
		Cycles: 1,
		Steps: []recipe.Entry{
			{Verb: "VALVE", Params: "wash"},
			{Verb: "PUMP", Params: 500},
			{Verb: "TEMP", Params: 37},
			{Verb: "HOLD", Params: 0.01},
		},
	}
}

func imagingRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name:   "imaging",
		Cycles: 1,
		Steps: []recipe.Entry{
			{Verb: "PUMP", Params: map[string]any{"reagent": "hyb_mix", "volume": 100}},
			{Verb: "IMAGE", Params: map[string]any{"roi": "left"}},
		},
	}
}

func TestRunRecipeFluidics(t *testing.T) {
	o, emu := testOrchestrator(t, Config{})

	run, err := o.RunRecipe("A", fluidicsRecipe(), 0)
	if err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}
	waitRun(t, run, domain.RunStatusDone)

	// Клапан перед насосом, затем термоконтроллер.
	var seen []string
	for _, cmd := range emu.Log() {
		seen = append(seen, cmd.Instrument+"."+cmd.Name)
	}
	want := []string{"ValveA.select", "PumpA.pump", "TempA.set_temperature"}
	if len(seen) != len(want) {
		t.Fatalf("dispatched = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("dispatched = %v, want %v", seen, want)
		}
	}

	if run.Progress() != 1 {
		t.Errorf("progress = %v, want 1", run.Progress())
	}
}

func TestRunRecipeImagingChain(t *testing.T) {
	o, emu := testOrchestrator(t, Config{})

	run, err := o.RunRecipe("A", imagingRecipe(), 0)
	if err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}
	waitRun(t, run, domain.RunStatusDone)

	var seen []string
	for _, cmd := range emu.Log() {
		seen = append(seen, cmd.Instrument+"."+cmd.Name)
	}
	// ROI left укладывается в две плитки по X и одну по Y: оптика
	// настраивается один раз, затем столик обходит плитки.
	want := []string{
		"ValveA.select", "PumpA.pump",
		"ZStage.move", "Laser.set_power", "FilterWheel.select",
		"XStage.move", "YStage.move", "Camera.capture",
		"XStage.move", "YStage.move", "Camera.capture",
	}
	if len(seen) != len(want) {
		t.Fatalf("dispatched = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("dispatched[%d] = %s, want %s", i, seen[i], want[i])
		}
	}

	// Микроскоп освобождён после съёмки.
	if owner := o.MicroscopeOwner(); owner != "" {
		t.Errorf("microscope still reserved by %q", owner)
	}
}

func TestRunRecipeAtomicOnCompileError(t *testing.T) {
	o, _ := testOrchestrator(t, Config{})

	bad := &recipe.Recipe{
		Name:   "bad",
		Cycles: 1,
		Steps: []recipe.Entry{
			{Verb: "VALVE", Params: "wash"},
			{Verb: "PUMP", Params: 500},
			{Verb: "PUMP", Params: map[string]any{"reagent": "X", "volume": 100}},
		},
	}

	_, err := o.RunRecipe("A", bad, 0)
	if !errors.Is(err, recipe.ErrUnresolvedReference) {
		t.Fatalf("got %v, want unresolved reference", err)
	}

	// Ни одна задача не попала в очереди.
	for _, q := range o.Queues() {
		if !q.Idle() {
			t.Fatalf("queue %s is not empty after failed plan", q.Name())
		}
	}
	if len(o.Runs()) != 0 {
		t.Fatal("failed plan must not register a run")
	}
}

func TestPumpFailureFailsImagingWithoutDispatch(t *testing.T) {
	o, emu := testOrchestrator(t, Config{OnFailure: queue.PolicySkip})
	emu.FailWith("PumpA", "pump", errors.New("пузырь в канале"))

	run, err := o.RunRecipe("A", imagingRecipe(), 0)
	if err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}
	waitRun(t, run, domain.RunStatusFailed)

	// Съёмка не диспетчеризована: после отказа насоса ни одна
	// команда микроскопа не ушла в железо.
	for _, cmd := range emu.Log() {
		if cmd.Instrument == "Camera" || cmd.Instrument == "XStage" {
			t.Fatalf("microscope command dispatched after pump failure: %+v", cmd)
		}
	}

	// Задачи съёмки упали из-за зависимости, с её ID в тексте.
	var pumpTask *domain.Task
	for _, task := range run.Tasks {
		if task.Command == "pump" {
			pumpTask = task
		}
	}
	for _, task := range run.Tasks {
		if task.Command == "reserve" {
			if task.Status() != domain.TaskStatusFailed {
				t.Fatalf("reserve status = %s, want FAILED", task.Status())
			}
			if !strings.Contains(task.Err(), pumpTask.ID.String()) {
				t.Errorf("reserve error must name failed dependency: %q", task.Err())
			}
		}
	}

	// Микроскоп не остался зарезервированным.
	if owner := o.MicroscopeOwner(); owner != "" {
		t.Errorf("microscope leaked to %q", owner)
	}
}

func TestDispatchTimeoutFailsTask(t *testing.T) {
	o, emu := testOrchestrator(t, Config{
		OnFailure:      queue.PolicySkip,
		DefaultTimeout: 50 * time.Millisecond,
	})
	emu.Hang("TempA", "set_temperature", true)

	run, err := o.RunRecipe("A", fluidicsRecipe(), 0)
	if err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}
	waitRun(t, run, domain.RunStatusFailed)

	var tempTask *domain.Task
	for _, task := range run.Tasks {
		if task.Command == "set_temperature" {
			tempTask = task
		}
	}
	if tempTask.Status() != domain.TaskStatusFailed {
		t.Fatalf("temp task status = %s, want FAILED", tempTask.Status())
	}
	if !strings.Contains(tempTask.Err(), "таймаут") {
		t.Errorf("error must mention timeout: %q", tempTask.Err())
	}
}

func TestImagingFailureReleasesMicroscope(t *testing.T) {
	o, emu := testOrchestrator(t, Config{OnFailure: queue.PolicySkip})
	emu.FailWith("XStage", "move", errors.New("столик заклинило"))

	run, err := o.RunRecipe("A", imagingRecipe(), 0)
	if err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}
	waitRun(t, run, domain.RunStatusFailed)

	// Резервация уже взята, отказ в середине цепочки: съёмка не
	// диспетчеризуется, но release отрабатывает и возвращает микроскоп.
	for _, cmd := range emu.Log() {
		if cmd.Instrument == "Camera" {
			t.Fatalf("capture dispatched after stage failure: %+v", cmd)
		}
	}

	var release *domain.Task
	for _, task := range run.Tasks {
		if task.Command == "release" {
			release = task
		}
	}
	if release == nil {
		t.Fatal("imaging chain has no release task")
	}
	if release.Status() != domain.TaskStatusDone {
		t.Fatalf("release status = %s (%s), want DONE", release.Status(), release.Err())
	}
	if owner := o.MicroscopeOwner(); owner != "" {
		t.Errorf("microscope leaked to %q", owner)
	}
}

func TestROILifecycle(t *testing.T) {
	o, _ := testOrchestrator(t, Config{})

	roi := domain.ROI{
		Name: "center",
		Stage: domain.StageRegion{
			XInit: 2200, XLast: 2800, XStep: 500,
			YInit: 1000, YLast: 1500, YStep: 500,
			ZInit: 11000, NZ: 1, ZStep: 0.5,
		},
	}
	if err := o.SetROI("A", roi); err != nil {
		t.Fatalf("SetROI: %v", err)
	}

	rois, err := o.ROIs("A")
	if err != nil {
		t.Fatalf("ROIs: %v", err)
	}
	var got *domain.ROI
	for i := range rois {
		if rois[i].Name == "center" {
			got = &rois[i]
		}
	}
	if got == nil {
		t.Fatalf("center not listed, rois = %v", rois)
	}
	// Незаданная оптика наследуется от эксперимента.
	if got.Image.Optics.Exposure != 40 {
		t.Errorf("exposure = %v, want inherited 40", got.Image.Optics.Exposure)
	}
	if got.Flowcell != "A" {
		t.Errorf("flowcell = %q, want A", got.Flowcell)
	}

	// Повторный SetROI замещает, а не дублирует.
	roi.Stage.XLast = 3000
	if err := o.SetROI("A", roi); err != nil {
		t.Fatalf("SetROI replace: %v", err)
	}
	rois, _ = o.ROIs("A")
	n := 0
	for i := range rois {
		if rois[i].Name == "center" {
			n++
			if rois[i].Stage.XLast != 3000 {
				t.Errorf("x_last = %v, want 3000", rois[i].Stage.XLast)
			}
		}
	}
	if n != 1 {
		t.Fatalf("center appears %d times, want 1", n)
	}

	if err := o.RemoveROI("A", "center"); err != nil {
		t.Fatalf("RemoveROI: %v", err)
	}
	if err := o.RemoveROI("A", "center"); !errors.Is(err, ErrROINotFound) {
		t.Fatalf("second remove = %v, want ErrROINotFound", err)
	}

	if err := o.SetROI("C", roi); !errors.Is(err, ErrUnknownFlowcell) {
		t.Errorf("unknown flowcell = %v, want ErrUnknownFlowcell", err)
	}
}

func TestROIMutationRefusedWhileBusy(t *testing.T) {
	o, _ := testOrchestrator(t, Config{})
	o.PauseAll()

	if _, err := o.RunRecipe("A", fluidicsRecipe(), 0); err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}

	roi := domain.ROI{
		Name: "late",
		Stage: domain.StageRegion{
			XInit: 0, XLast: 500, XStep: 500,
			YInit: 0, YLast: 500, YStep: 500,
			ZInit: 11000, NZ: 1, ZStep: 0.5,
		},
	}
	if err := o.SetROI("A", roi); !errors.Is(err, ErrBusy) {
		t.Fatalf("SetROI on busy flowcell = %v, want ErrBusy", err)
	}
	if err := o.RemoveROI("A", "left"); !errors.Is(err, ErrBusy) {
		t.Fatalf("RemoveROI on busy flowcell = %v, want ErrBusy", err)
	}
}

func TestUserConfirmation(t *testing.T) {
	o, _ := testOrchestrator(t, Config{})

	rec := &recipe.Recipe{
		Name:   "manual",
		Cycles: 1,
		Steps: []recipe.Entry{
			{Verb: "USER", Params: "загрузите флоуселл"},
			{Verb: "TEMP", Params: 25},
		},
	}
	run, err := o.RunRecipe("A", rec, 0)
	if err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}

	// Задача USER дошла до выполнения и ждёт оператора.
	var waiting bool
	deadline := time.After(2 * time.Second)
	for !waiting {
		select {
		case <-deadline:
			t.Fatal("user task never started waiting")
		case <-time.After(5 * time.Millisecond):
		}
		waiting = len(o.AwaitingConfirmation()) > 0
	}

	ids := o.AwaitingConfirmation()
	if err := o.Confirm(ids[0]); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	waitRun(t, run, domain.RunStatusDone)

	// Повторное подтверждение той же задачи отвергается.
	if err := o.Confirm(ids[0]); !errors.Is(err, ErrNotWaiting) {
		t.Errorf("second confirm = %v, want ErrNotWaiting", err)
	}
}

func TestNewExperimentRefusesWhileBusy(t *testing.T) {
	o, _ := testOrchestrator(t, Config{})
	o.PauseAll()

	if _, err := o.RunRecipe("A", fluidicsRecipe(), 0); err != nil {
		t.Fatalf("RunRecipe: %v", err)
	}

	next := &config.Experiment{Name: "next", Flowcells: []string{"A"}}
	if err := o.NewExperiment(next); !errors.Is(err, ErrBusy) {
		t.Fatalf("NewExperiment on busy queues = %v, want ErrBusy", err)
	}

	o.ClearAll()
	if err := o.NewExperiment(next); err != nil {
		t.Fatalf("NewExperiment after clear: %v", err)
	}
	if o.Experiment().Name != "next" {
		t.Errorf("experiment = %s, want next", o.Experiment().Name)
	}
}

func TestPauseFlowcellScopesToOneFlowcell(t *testing.T) {
	o, _ := testOrchestrator(t, Config{})

	if err := o.PauseFlowcell("A"); err != nil {
		t.Fatalf("PauseFlowcell: %v", err)
	}
	qa, _ := o.Queue("A/pump")
	qb, _ := o.Queue("B/pump")
	if !qa.Paused() {
		t.Error("A/pump must be paused")
	}
	if qb.Paused() {
		t.Error("B/pump must not be paused")
	}

	if err := o.ResumeFlowcell("A"); err != nil {
		t.Fatalf("ResumeFlowcell: %v", err)
	}
	if qa.Paused() {
		t.Error("A/pump must be resumed")
	}

	if err := o.PauseFlowcell("C"); !errors.Is(err, ErrUnknownFlowcell) {
		t.Errorf("unknown flowcell = %v, want ErrUnknownFlowcell", err)
	}
}

func TestReservationExclusive(t *testing.T) {
	res := NewReservation()
	ctx := context.Background()

	if err := res.Reserve(ctx, "A"); err != nil {
		t.Fatalf("Reserve A: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		_ = res.Reserve(ctx, "B")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("B reserved while A holds the microscope")
	case <-time.After(50 * time.Millisecond):
	}

	res.Release("A")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("B never acquired after release")
	}
	if res.Owner() != "B" {
		t.Errorf("owner = %q, want B", res.Owner())
	}

	// Release чужим владельцем игнорируется.
	res.Release("A")
	if res.Owner() != "B" {
		t.Error("foreign release must be ignored")
	}
}

func TestReservationReserveCancellable(t *testing.T) {
	res := NewReservation()
	if err := res.Reserve(context.Background(), "A"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := res.Reserve(ctx, "B"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}
