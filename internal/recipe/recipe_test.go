package recipe

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/param"
)

func testCompiler(t *testing.T) *Compiler {
	t.Helper()
	machine, err := config.LoadMachine("testdata/machine.yaml")
	if err != nil {
		t.Fatalf("LoadMachine: %v", err)
	}
	exp, err := config.LoadExperiment("testdata/experiment.toml")
	if err != nil {
		t.Fatalf("LoadExperiment: %v", err)
	}
	return NewCompiler(machine, exp, nil)
}

func TestLoadRecipes(t *testing.T) {
	recipes, err := Load("testdata/hybridization.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recipes) != 2 {
		t.Fatalf("got %d recipes, want 2", len(recipes))
	}

	hyb := recipes[0]
	if hyb.Name != "hybridization" || hyb.Cycles != 2 {
		t.Errorf("recipe = %s/%d, want hybridization/2", hyb.Name, hyb.Cycles)
	}
	if len(hyb.Steps) != 7 {
		t.Errorf("steps = %d, want 7", len(hyb.Steps))
	}

	if _, ok := ByName(recipes, "final_wash"); !ok {
		t.Error("final_wash not found by name")
	}
	// Цикл по умолчанию равен 1.
	if recipes[1].Cycles != 1 {
		t.Errorf("default cycles = %d, want 1", recipes[1].Cycles)
	}
}

func TestCompileHybridization(t *testing.T) {
	c := testCompiler(t)
	recipes, err := Load("testdata/hybridization.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	steps, err := c.Compile("A", recipes[0], 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// За цикл: PUMP, TEMP, HOLD, PUMP, WAIT, IMAGE x2 ROI = 7 шагов.
	// VALVE шага не порождает. Два цикла = 14.
	if len(steps) != 14 {
		t.Fatalf("steps = %d, want 14", len(steps))
	}

	pump := steps[0]
	if pump.Kind != domain.StepPump {
		t.Fatalf("step 0 kind = %s, want pump", pump.Kind)
	}
	// VALVE wash свёрнут в прокачку: порт и скорость из реагента.
	if pump.Args["reagent"] != "wash" || pump.Args["port"] != 1 {
		t.Errorf("pump args = %v, want wash/port 1", pump.Args)
	}
	if pump.Args["flow_rate"] != 2500.0 {
		t.Errorf("flow_rate = %v, want reagent default 2500", pump.Args["flow_rate"])
	}
	if pump.Args["volume"] != 500.0 {
		t.Errorf("volume = %v, want 500", pump.Args["volume"])
	}

	if steps[1].Kind != domain.StepTemperature || steps[2].Kind != domain.StepHold {
		t.Errorf("steps 1,2 = %s,%s, want temperature,hold", steps[1].Kind, steps[2].Kind)
	}

	hyb := steps[3]
	if hyb.Args["reagent"] != "hyb_mix" || hyb.Args["flow_rate"] != 1500.0 {
		t.Errorf("explicit pump args = %v", hyb.Args)
	}

	if steps[4].Kind != domain.StepWait {
		t.Errorf("step 4 = %s, want wait", steps[4].Kind)
	}

	// IMAGE развёрнут по двум ROI, параметр шага перекрыл nz.
	img1, img2 := steps[5], steps[6]
	if img1.Kind != domain.StepImage || img2.Kind != domain.StepImage {
		t.Fatalf("steps 5,6 = %s,%s, want image,image", img1.Kind, img2.Kind)
	}
	if img1.ROI == nil || img1.ROI.Name != "left" || img2.ROI.Name != "right" {
		t.Errorf("image ROIs = %v, %v, want left,right", img1.ROI, img2.ROI)
	}
	if img1.ROI.Image.NZ != 3 {
		t.Errorf("image nz = %d, want step override 3", img1.ROI.Image.NZ)
	}
	// Оптика ROI унаследована от эксперимента.
	if img1.ROI.Image.Optics.Exposure != 40.0 {
		t.Errorf("image exposure = %v, want 40", img1.ROI.Image.Optics.Exposure)
	}

	// Зависимости: строгая цепочка в порядке рецепта.
	if steps[0].DependsOn != nil {
		t.Errorf("first step deps = %v, want none", steps[0].DependsOn)
	}
	for i := 1; i < len(steps); i++ {
		if len(steps[i].DependsOn) != 1 || steps[i].DependsOn[0] != i-1 {
			t.Fatalf("step %d deps = %v, want [%d]", i, steps[i].DependsOn, i-1)
		}
	}

	// Номера циклов.
	if steps[0].Cycle != 1 || steps[7].Cycle != 2 {
		t.Errorf("cycles = %d,%d, want 1,2", steps[0].Cycle, steps[7].Cycle)
	}
}

func TestCompileDeterministic(t *testing.T) {
	c := testCompiler(t)
	recipes, _ := Load("testdata/hybridization.yaml")

	first, err := c.Compile("A", recipes[0], 2)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	second, err := c.Compile("A", recipes[0], 2)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("compilation must be deterministic")
	}
}

func TestCompileUnknownReagent(t *testing.T) {
	c := testCompiler(t)
	rec := &Recipe{
		Name:   "bad",
		Cycles: 1,
		Steps: []Entry{
			{Verb: "PUMP", Params: map[string]any{"reagent": "X", "volume": 100}},
		},
	}

	_, err := c.Compile("A", rec, 0)
	if err == nil {
		t.Fatal("expected error")
	}

	var refErr *UnresolvedReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected *UnresolvedReferenceError, got %v", err)
	}
	if refErr.Name != "X" || refErr.Kind != "reagent" {
		t.Errorf("reference = %s %q, want reagent X", refErr.Kind, refErr.Name)
	}
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Errorf("expected ErrUnresolvedReference sentinel, got %v", err)
	}
}

func TestCompileCollectsAllErrors(t *testing.T) {
	c := testCompiler(t)
	rec := &Recipe{
		Name:   "broken",
		Cycles: 1,
		Steps: []Entry{
			{Verb: "PUMP", Params: map[string]any{"reagent": "X", "volume": 100}},
			{Verb: "VALVE", Params: "wash"},
			{Verb: "PUMP", Params: 9000},
			{Verb: "SHAKE", Params: 5},
		},
	}

	_, err := c.Compile("A", rec, 0)
	if err == nil {
		t.Fatal("expected errors")
	}

	msg := err.Error()
	// Все три ошибки собраны, с номерами шагов.
	for _, want := range []string{"шаг 1", "шаг 3", "шаг 4"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error must mention %q: %s", want, msg)
		}
	}

	var rangeErr *param.RangeError
	if !errors.As(err, &rangeErr) {
		t.Errorf("volume overflow must surface as *param.RangeError: %v", err)
	}
	if !errors.Is(err, ErrUnknownVerb) {
		t.Errorf("unknown verb must surface: %v", err)
	}
}

func TestCompilePumpWithoutReagent(t *testing.T) {
	c := testCompiler(t)
	rec := &Recipe{
		Name:   "orphan_pump",
		Cycles: 1,
		Steps:  []Entry{{Verb: "PUMP", Params: 500}},
	}

	_, err := c.Compile("A", rec, 0)
	if !errors.Is(err, ErrBadParams) {
		t.Fatalf("pump without valve must fail: %v", err)
	}
}

func TestCompileImagingWithoutROIs(t *testing.T) {
	machine, err := config.LoadMachine("testdata/machine.yaml")
	if err != nil {
		t.Fatalf("LoadMachine: %v", err)
	}
	exp := &config.Experiment{Flowcells: []string{"A"}}

	c := NewCompiler(machine, exp, nil)
	rec := &Recipe{
		Name:   "image_only",
		Cycles: 1,
		Steps:  []Entry{{Verb: "IMAGE", Params: 3}},
	}

	steps, err := c.Compile("A", rec, 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("steps = %d, want 0 without ROIs", len(steps))
	}
}

func TestCompileFocusAndExpose(t *testing.T) {
	c := testCompiler(t)
	rec := &Recipe{
		Name:   "optics",
		Cycles: 1,
		Steps: []Entry{
			{Verb: "FOCUS", Params: map[string]any{"roi": "left", "routine": "full"}},
			{Verb: "EXPOSE", Params: 2},
		},
	}

	steps, err := c.Compile("A", rec, 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// FOCUS на один ROI, EXPOSE на оба.
	if len(steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(steps))
	}
	if steps[0].Kind != domain.StepFocus || steps[0].ROI.Focus.Routine != "full" {
		t.Errorf("focus step = %+v", steps[0])
	}
	if steps[1].Kind != domain.StepExpose || steps[1].ROI.Expose.NExposures != 2 {
		t.Errorf("expose step = %+v", steps[1])
	}
}

func TestCompileUnknownROI(t *testing.T) {
	c := testCompiler(t)
	rec := &Recipe{
		Name:   "ghost_roi",
		Cycles: 1,
		Steps:  []Entry{{Verb: "IMAGE", Params: map[string]any{"roi": "ghost"}}},
	}

	_, err := c.Compile("A", rec, 0)
	var refErr *UnresolvedReferenceError
	if !errors.As(err, &refErr) || refErr.Kind != "roi" {
		t.Fatalf("expected roi reference error, got %v", err)
	}
}

func TestParseRejectsMultiVerbStep(t *testing.T) {
	_, err := Parse([]byte("name: bad\nsteps:\n  - {PUMP: 500, HOLD: 60}\n"))
	if err == nil {
		t.Fatal("step with two verbs must be rejected")
	}
}
