package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrBusy — операция требует пустых очередей, но в них остались задачи.
	ErrBusy = errors.New("queues are not empty")

	// ErrUnknownQueue — очередь с таким именем не зарегистрирована.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrUnknownFlowcell — флоуселл не объявлен в машинной конфигурации.
	ErrUnknownFlowcell = errors.New("unknown flowcell")

	// ErrRunNotFound — запуск рецепта не найден.
	ErrRunNotFound = errors.New("run not found")

	// ErrUnknownCommand — для команды задачи нет исполнителя.
	ErrUnknownCommand = errors.New("no executor for command")

	// ErrNotWaiting — задача не ждёт подтверждения оператора.
	ErrNotWaiting = errors.New("task is not waiting for confirmation")

	// ErrROINotFound — у флоуселла нет ROI с таким именем.
	ErrROINotFound = errors.New("roi not found")
)
