package api

import (
	"log/slog"

	"github.com/shaiso/Sequora/internal/orchestrator"
	"github.com/shaiso/Sequora/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orch    *orchestrator.Orchestrator
	runRepo *repo.RunRepo
	taskLog *repo.TaskLog
	logger  *slog.Logger
}

// Config — конфигурация для создания Handler.
//
// RunRepo и TaskLog опциональны: без БД контроллер отдаёт только
// состояние из памяти оркестратора.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	RunRepo      *repo.RunRepo
	TaskLog      *repo.TaskLog
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		orch:    cfg.Orchestrator,
		runRepo: cfg.RunRepo,
		taskLog: cfg.TaskLog,
		logger:  cfg.Logger,
	}
}
