package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики контроллера. Регистрируются в default registry,
// отдаются через promhttp на /metrics.
var (
	// TasksTotal — счётчик задач по очереди и финальному статусу.
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequora_tasks_total",
		Help: "Tasks finished, by queue and final status.",
	}, []string{"queue", "status"})

	// QueueDepth — текущая глубина очереди (PENDING + RUNNING).
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sequora_queue_depth",
		Help: "Tasks pending or running per queue.",
	}, []string{"queue"})

	// DispatchDuration — длительность команд приборам.
	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sequora_dispatch_duration_seconds",
		Help:    "Instrument command duration.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~4.4m
	}, []string{"instrument", "command"})

	// RunsTotal — счётчик завершённых запусков рецептов.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequora_runs_total",
		Help: "Recipe runs finished, by flowcell and final status.",
	}, []string{"flowcell", "status"})
)

// ObserveDispatch записывает длительность команды прибора.
func ObserveDispatch(instrument, command string, elapsed time.Duration) {
	DispatchDuration.WithLabelValues(instrument, command).Observe(elapsed.Seconds())
}
