package dispatch

import (
	"context"
	"time"
)

// Command — команда одному инструменту.
type Command struct {
	// Instrument — имя инструмента из машинной конфигурации.
	Instrument string

	// Name — имя команды ("pump", "move", "capture").
	Name string

	// Args — провалидированные аргументы команды.
	Args map[string]any
}

// Outcome — результат успешно выполненной команды.
type Outcome struct {
	// Outputs — данные, возвращённые инструментом
	// (позиция стейджа, найденный фокус, путь к снимку).
	Outputs map[string]any

	// Elapsed — фактическая длительность выполнения.
	Elapsed time.Duration
}

// Dispatcher — отправка команд инструментам.
//
// Реализации: Emulated (без железа), LineGuard (декоратор,
// сериализующий доступ к последовательным линиям).
type Dispatcher interface {
	// Dispatch выполняет команду и ждёт её завершения.
	// При превышении timeout возвращает *TimeoutError, при отказе
	// инструмента — *DispatchError. timeout <= 0 означает без ограничения.
	Dispatch(ctx context.Context, cmd Command, timeout time.Duration) (*Outcome, error)
}

// withTimeout оборачивает контекст таймаутом команды.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
