package domain

// TaskStatus — статус выполнения задачи в очереди подсистемы.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → DONE
//	                  ↘ FAILED
//	        ↘ CANCELLED (удаление из очереди до запуска)
type TaskStatus string

const (
	// TaskStatusPending — задача в очереди, ожидает выполнения.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — задача выполняется. В очереди может быть
	// не более одной RUNNING задачи одновременно.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusDone — задача успешно завершена.
	TaskStatusDone TaskStatus = "DONE"

	// TaskStatusFailed — задача завершилась ошибкой
	// (ошибка диспетчеризации, таймаут или упавшая зависимость).
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusCancelled — задача удалена из очереди до запуска.
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusDone, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// RunStatus — статус выполнения рецепта (всей партии задач).
type RunStatus string

const (
	// RunStatusRunning — задачи рецепта поставлены в очереди, выполнение идёт.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusDone — все задачи рецепта завершены успешно.
	RunStatusDone RunStatus = "DONE"

	// RunStatusFailed — хотя бы одна задача завершилась ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusDone || s == RunStatusFailed
}
