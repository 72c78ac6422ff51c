package queue

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Sequora/internal/domain"
)

// Ошибки очереди.
var (
	// ErrInvalidState — операция неприменима к текущему статусу задачи.
	ErrInvalidState = errors.New("invalid task state")

	// ErrDependencyFailed — зависимость задачи завершилась неуспешно.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrTaskNotFound — задача с таким ID в очереди не найдена.
	ErrTaskNotFound = errors.New("task not found")
)

// InvalidStateError — попытка мутации задачи вне статуса PENDING.
type InvalidStateError struct {
	Op     string
	TaskID uuid.UUID
	Status domain.TaskStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s: задача в статусе %s, допустим только PENDING", e.Op, e.TaskID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// DependencyFailedError — задача не запускалась, потому что её
// зависимость завершилась со статусом FAILED или CANCELLED.
type DependencyFailedError struct {
	TaskID    uuid.UUID
	DepID     uuid.UUID
	DepStatus domain.TaskStatus
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("задача %s не запущена: зависимость %s завершилась как %s", e.TaskID, e.DepID, e.DepStatus)
}

func (e *DependencyFailedError) Unwrap() error { return ErrDependencyFailed }
