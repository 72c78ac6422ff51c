package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/domain"
)

type fakeRunner struct {
	started []string // "flowcell:recipe"
	busy    map[string]bool
	failErr error
}

func (f *fakeRunner) RunRecipeFile(flowcell, path, name string, cycles int) (*domain.Run, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.started = append(f.started, flowcell+":"+path)
	return domain.NewRun(flowcell, path, 1), nil
}

func (f *fakeRunner) FlowcellIdle(flowcell string) bool {
	return !f.busy[flowcell]
}

func TestNextDue(t *testing.T) {
	from := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 10, 14, 45, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := NextDue(tt.expr, from)
			if err != nil {
				t.Fatalf("NextDue: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextDue(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 3 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Config{
		Jobs:   []config.MaintenanceJob{{Name: "wash", Recipe: "wash.yaml", Schedule: "every day"}},
		Runner: &fakeRunner{},
	})
	if err == nil {
		t.Fatal("invalid schedule must fail New")
	}
}

func TestTickRunsDueJobs(t *testing.T) {
	runner := &fakeRunner{}
	sched, err := New(Config{
		Jobs:      []config.MaintenanceJob{{Name: "wash", Recipe: "wash.yaml", Schedule: "0 3 * * *"}},
		Flowcells: []string{"A", "B"},
		Runner:    runner,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// До срока ничего не запускается.
	sched.Tick(time.Now())
	if len(runner.started) != 0 {
		t.Fatalf("job ran before due: %v", runner.started)
	}

	// Переводим часы за срок.
	sched.Tick(time.Now().Add(48 * time.Hour))
	want := []string{"A:wash.yaml", "B:wash.yaml"}
	if len(runner.started) != 2 || runner.started[0] != want[0] || runner.started[1] != want[1] {
		t.Fatalf("started = %v, want %v", runner.started, want)
	}

	// next_due перенесён: повторный тик тем же временем молчит.
	runner.started = nil
	sched.Tick(time.Now().Add(48 * time.Hour))
	if len(runner.started) != 0 {
		t.Fatalf("job ran twice for one due time: %v", runner.started)
	}
}

func TestTickSkipsBusyFlowcell(t *testing.T) {
	runner := &fakeRunner{busy: map[string]bool{"A": true}}
	sched, err := New(Config{
		Jobs:      []config.MaintenanceJob{{Name: "wash", Recipe: "wash.yaml", Schedule: "0 3 * * *"}},
		Flowcells: []string{"A", "B"},
		Runner:    runner,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sched.Tick(time.Now().Add(48 * time.Hour))
	if len(runner.started) != 1 || runner.started[0] != "B:wash.yaml" {
		t.Fatalf("started = %v, want only B", runner.started)
	}
}

func TestTickHonoursJobFlowcells(t *testing.T) {
	runner := &fakeRunner{}
	sched, err := New(Config{
		Jobs: []config.MaintenanceJob{
			{Name: "wash", Recipe: "wash.yaml", Schedule: "0 3 * * *", Flowcells: []string{"B"}},
		},
		Flowcells: []string{"A", "B"},
		Runner:    runner,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sched.Tick(time.Now().Add(48 * time.Hour))
	if len(runner.started) != 1 || runner.started[0] != "B:wash.yaml" {
		t.Fatalf("started = %v, want only B", runner.started)
	}
}
