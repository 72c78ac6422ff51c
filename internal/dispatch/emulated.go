package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Emulated — диспетчер без железа.
//
// Отвечает на любую команду после настраиваемой задержки и ведёт
// журнал отправленных команд. Используется в тестах и в режиме
// эмуляции прибора. Отдельные команды можно заставить падать или
// зависать через FailWith и Hang.
type Emulated struct {
	// Latency — задержка ответа на каждую команду.
	Latency time.Duration

	logger *slog.Logger

	mu       sync.Mutex
	log      []Command
	failures map[string]error
	hangs    map[string]bool
}

// NewEmulated создаёт эмулирующий диспетчер.
func NewEmulated(logger *slog.Logger) *Emulated {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emulated{
		logger:   logger,
		failures: make(map[string]error),
		hangs:    make(map[string]bool),
	}
}

// FailWith назначает ошибку, с которой будет падать команда
// instrument.command. Срабатывает на каждый вызов до сброса nil.
func (e *Emulated) FailWith(instrument, command string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := instrument + "." + command
	if err == nil {
		delete(e.failures, key)
		return
	}
	e.failures[key] = err
}

// Hang заставляет команду instrument.command висеть до таймаута.
func (e *Emulated) Hang(instrument, command string, hang bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := instrument + "." + command
	if hang {
		e.hangs[key] = true
	} else {
		delete(e.hangs, key)
	}
}

// Log возвращает копию журнала отправленных команд.
func (e *Emulated) Log() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Command, len(e.log))
	copy(out, e.log)
	return out
}

// Dispatch эмулирует выполнение команды.
func (e *Emulated) Dispatch(ctx context.Context, cmd Command, timeout time.Duration) (*Outcome, error) {
	start := time.Now()

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	key := cmd.Instrument + "." + cmd.Name

	e.mu.Lock()
	e.log = append(e.log, cmd)
	failErr := e.failures[key]
	hang := e.hangs[key]
	latency := e.Latency
	e.mu.Unlock()

	e.logger.Debug("emulated dispatch",
		"instrument", cmd.Instrument,
		"command", cmd.Name,
		"args", fmt.Sprint(cmd.Args),
	)

	if hang {
		<-ctx.Done()
	} else if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
		}
	}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Instrument: cmd.Instrument, Command: cmd.Name, Timeout: timeout}
		}
		return nil, &DispatchError{Instrument: cmd.Instrument, Command: cmd.Name, Cause: err}
	}

	if failErr != nil {
		return nil, &DispatchError{Instrument: cmd.Instrument, Command: cmd.Name, Cause: failErr}
	}

	return &Outcome{
		Outputs: map[string]any{"emulated": true},
		Elapsed: time.Since(start),
	}, nil
}
