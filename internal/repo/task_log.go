package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Sequora/internal/domain"
)

// TaskLog — журнал смен статусов задач.
//
// Каждая смена статуса пишется отдельной строкой: журнал только
// растёт, истории мутаций очереди (включая удалённые задачи) из него
// восстановимы.
type TaskLog struct {
	pool *pgxpool.Pool
}

// NewTaskLog создаёт журнал задач.
func NewTaskLog(pool *pgxpool.Pool) *TaskLog {
	return &TaskLog{pool: pool}
}

// Append записывает текущее состояние задачи.
func (l *TaskLog) Append(ctx context.Context, task *domain.Task) error {
	argsJSON, err := json.Marshal(task.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}

	query := `
		INSERT INTO task_log (task_id, run_id, queue, command, status, error, args, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = l.pool.Exec(ctx, query,
		task.ID, task.RunID, task.Queue, task.Command,
		task.Status(), nullString(task.Err()), argsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("insert task log: %w", err)
	}
	return nil
}

// TaskLogEntry — строка журнала задачи.
type TaskLogEntry struct {
	TaskID   uuid.UUID         `json:"task_id"`
	RunID    uuid.UUID         `json:"run_id"`
	Queue    string            `json:"queue"`
	Command  string            `json:"command"`
	Status   domain.TaskStatus `json:"status"`
	Error    string            `json:"error,omitempty"`
	LoggedAt time.Time         `json:"logged_at"`
}

// ByRun возвращает журнал всех задач запуска в порядке записи.
func (l *TaskLog) ByRun(ctx context.Context, runID uuid.UUID) ([]TaskLogEntry, error) {
	query := `
		SELECT task_id, run_id, queue, command, status, error, logged_at
		FROM task_log
		WHERE run_id = $1
		ORDER BY logged_at
	`
	rows, err := l.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query task log: %w", err)
	}
	defer rows.Close()

	var entries []TaskLogEntry
	for rows.Next() {
		var e TaskLogEntry
		var errText *string
		if err := rows.Scan(&e.TaskID, &e.RunID, &e.Queue, &e.Command, &e.Status, &errText, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan task log: %w", err)
		}
		if errText != nil {
			e.Error = *errText
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
