package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/domain"
)

// Runner запускает сервисный рецепт. Реализуется оркестратором.
type Runner interface {
	RunRecipeFile(flowcell, path, name string, cycles int) (*domain.Run, error)
	FlowcellIdle(flowcell string) bool
}

// job — задание обслуживания с вычисленным временем следующего запуска.
type job struct {
	cfg     config.MaintenanceJob
	nextDue time.Time
}

// Scheduler — планировщик заданий обслуживания.
type Scheduler struct {
	jobs      []*job
	flowcells []string
	runner    Runner
	logger    *slog.Logger
	tick      time.Duration
}

// Config — конфигурация Scheduler.
type Config struct {
	Jobs      []config.MaintenanceJob
	Flowcells []string // флоуселлы по умолчанию для заданий без своего списка
	Runner    Runner
	Logger    *slog.Logger
	Tick      time.Duration // период проверки (default: 30s)
}

// New создаёт Scheduler. Cron-выражения заданий проверяются сразу,
// невалидное расписание — ошибка конфигурации, а не сюрприз в три ночи.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = 30 * time.Second
	}

	now := time.Now()
	jobs := make([]*job, 0, len(cfg.Jobs))
	for _, jc := range cfg.Jobs {
		due, err := NextDue(jc.Schedule, now)
		if err != nil {
			return nil, fmt.Errorf("maintenance job %q: %w", jc.Name, err)
		}
		jobs = append(jobs, &job{cfg: jc, nextDue: due})
	}

	return &Scheduler{
		jobs:      jobs,
		flowcells: cfg.Flowcells,
		runner:    cfg.Runner,
		logger:    logger,
		tick:      tick,
	}, nil
}

// Run крутит тики до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит просроченные задания (next_due <= now)
// 2. Запускает рецепт на каждом свободном флоуселле задания
// 3. Переносит next_due на следующее время по cron
//
// Ошибки одного задания не блокируют обработку остальных.
func (s *Scheduler) Tick(now time.Time) {
	for _, j := range s.jobs {
		if j.nextDue.After(now) {
			continue
		}

		s.processJob(j)

		next, err := NextDue(j.cfg.Schedule, now)
		if err != nil {
			// Расписание проверено в New, сюда попадать не должны.
			s.logger.Error("failed to calculate next due",
				"job", j.cfg.Name,
				"error", err,
			)
			continue
		}
		j.nextDue = next
	}
}

// processJob запускает рецепт задания на каждом его флоуселле.
func (s *Scheduler) processJob(j *job) {
	flowcells := j.cfg.Flowcells
	if len(flowcells) == 0 {
		flowcells = s.flowcells
	}

	for _, fc := range flowcells {
		if !s.runner.FlowcellIdle(fc) {
			s.logger.Warn("flowcell busy, skipping maintenance job",
				"job", j.cfg.Name,
				"flowcell", fc,
			)
			continue
		}

		run, err := s.runner.RunRecipeFile(fc, j.cfg.Recipe, "", 0)
		if err != nil {
			s.logger.Error("failed to start maintenance recipe",
				"job", j.cfg.Name,
				"flowcell", fc,
				"recipe", j.cfg.Recipe,
				"error", err,
			)
			continue
		}

		s.logger.Info("started maintenance recipe",
			"job", j.cfg.Name,
			"flowcell", fc,
			"run_id", run.ID,
		)
	}
}

// NextRuns возвращает имена заданий и их ближайшее время запуска.
func (s *Scheduler) NextRuns() map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for _, j := range s.jobs {
		out[j.cfg.Name] = j.nextDue
	}
	return out
}
