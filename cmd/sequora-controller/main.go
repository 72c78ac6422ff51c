// Sequora controller — управляющий процесс секвенатора.
//
// Загружает машинную конфигурацию и эксперимент, строит очереди
// задач, поднимает HTTP API, планировщик обслуживания и, если
// доступны, журнал в PostgreSQL и события в RabbitMQ.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Sequora/internal/api"
	"github.com/shaiso/Sequora/internal/config"
	"github.com/shaiso/Sequora/internal/dispatch"
	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/events"
	"github.com/shaiso/Sequora/internal/orchestrator"
	"github.com/shaiso/Sequora/internal/repo"
	"github.com/shaiso/Sequora/internal/scheduler"
	"github.com/shaiso/Sequora/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting sequora-controller")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Конфигурация
	machinePath := envOr("SEQUORA_MACHINE_CONFIG", "configs/machine.yaml")
	machine, err := config.LoadMachine(machinePath)
	if err != nil {
		logger.Error("failed to load machine config", "path", machinePath, "error", err)
		os.Exit(1)
	}

	expPath := envOr("SEQUORA_EXPERIMENT_CONFIG", "configs/experiment.toml")
	exp, err := config.LoadExperiment(expPath)
	if err != nil {
		logger.Error("failed to load experiment config", "path", expPath, "error", err)
		os.Exit(1)
	}
	logger.Info("experiment config loaded", "name", exp.Name, "flowcells", exp.Flowcells)

	// Диспетчер приборов. Разделяемые последовательные линии
	// сериализуются по адресу из машинной конфигурации.
	lines := make(map[string]string)
	for name, inst := range machine.Instruments {
		if inst.Address != "" {
			lines[name] = inst.Address
		}
	}
	dispatcher := dispatch.NewLineGuard(dispatch.NewEmulated(logger), lines)

	// DB pool (опционально: без БД журнал запусков не ведётся)
	var runRepo *repo.RunRepo
	var taskLog *repo.TaskLog
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Warn("database not available, running without run journal", "error", err)
	} else {
		defer pool.Close()
		logger.Info("database connected")
		runRepo = repo.NewRunRepo(pool)
		taskLog = repo.NewTaskLog(pool)
	}

	// RabbitMQ (опционально: без брокера события не публикуются)
	var publisher *events.Publisher
	var conn *events.Connection
	conn, err = events.Connect(config.AMQPURL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running without events", "error", err)
		conn = nil
	} else {
		defer conn.Close()
		logger.Info("RabbitMQ connected")

		if err := events.SetupTopology(conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = events.NewPublisher(conn, logger)
	}

	// Создаём orchestrator
	orch, err := orchestrator.New(orchestrator.Config{
		Machine:    machine,
		Experiment: exp,
		Dispatcher: dispatcher,
		Logger:     logger,
		OnTransition: func(task *domain.Task) {
			hookCtx, hookCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer hookCancel()
			if taskLog != nil {
				if err := taskLog.Append(hookCtx, task); err != nil {
					logger.Warn("failed to journal task", "task_id", task.ID, "error", err)
				}
			}
			if publisher != nil {
				if err := publisher.PublishTaskStatus(hookCtx, task); err != nil {
					logger.Warn("failed to publish task status", "task_id", task.ID, "error", err)
				}
			}
		},
		OnRunFinished: func(run *domain.Run) {
			hookCtx, hookCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer hookCancel()
			if runRepo != nil {
				if err := runRepo.Finish(hookCtx, run); err != nil {
					logger.Warn("failed to journal run", "run_id", run.ID, "error", err)
				}
			}
			if publisher != nil {
				if err := publisher.PublishRunFinished(hookCtx, run); err != nil {
					logger.Warn("failed to publish run finished", "run_id", run.ID, "error", err)
				}
			}
		},
	})
	if err != nil {
		logger.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}
	orch.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// Управляющие команды из брокера
	if conn != nil {
		consumer := events.NewControlConsumer(conn, orch, logger)
		group.Go(func() error {
			return consumer.Start(groupCtx)
		})
	}

	// Планировщик обслуживания
	if len(exp.Maintenance) > 0 {
		sched, err := scheduler.New(scheduler.Config{
			Jobs:      exp.Maintenance,
			Flowcells: exp.Flowcells,
			Runner:    orch,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		group.Go(func() error {
			sched.Run(groupCtx)
			return nil
		})
	}

	// HTTP: API + /healthz + /metrics
	handler := api.NewHandler(api.Config{
		Orchestrator: orch,
		RunRepo:      runRepo,
		TaskLog:      taskLog,
		Logger:       logger,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    ":" + envOr("SEQUORA_PORT", "8080"),
		Handler: mux,
	}
	group.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("controller error", "error", err)
	}

	// Дожидаемся остановки очередей
	orch.Wait()
	logger.Info("sequora-controller stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
