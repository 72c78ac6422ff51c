package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Sequora/internal/domain"
)

// RunRepo — журнал запусков рецептов.
//
// Запуски живут в памяти оркестратора; БД хранит их историю для
// отчётов и разбора инцидентов после рестарта процесса.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт репозиторий запусков.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create записывает новый запуск.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, flowcell, recipe, cycles, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.Flowcell, run.Recipe, run.Cycles, run.Status(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish фиксирует финальный статус запуска. Upsert: запуски
// планировщика попадают в журнал только при завершении.
func (r *RunRepo) Finish(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, flowcell, recipe, cycles, status, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, error = EXCLUDED.error, finished_at = EXCLUDED.finished_at
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.Flowcell, run.Recipe, run.Cycles,
		run.Status(), nullString(run.Err()), run.CreatedAt, run.FinishedAt())
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunRecord — строка журнала запусков. Живые запуски остаются
// в оркестраторе; запись журнала — их слепок для отчётов.
type RunRecord struct {
	ID         uuid.UUID        `json:"id"`
	Flowcell   string           `json:"flowcell"`
	Recipe     string           `json:"recipe"`
	Cycles     int              `json:"cycles"`
	Status     domain.RunStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// GetByID возвращает запись журнала по ID запуска.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	query := `
		SELECT id, flowcell, recipe, cycles, status, error, created_at, finished_at
		FROM runs
		WHERE id = $1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает записи журнала, новые первыми.
func (r *RunRepo) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, flowcell, recipe, cycles, status, error, created_at, finished_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (r *RunRepo) scanRun(row pgx.Row) (*RunRecord, error) {
	var run RunRecord
	var errText *string
	err := row.Scan(
		&run.ID, &run.Flowcell, &run.Recipe, &run.Cycles,
		&run.Status, &errText, &run.CreatedAt, &run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if errText != nil {
		run.Error = *errText
	}
	return &run, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
