package dispatch

import (
	"context"
	"sync"
	"time"
)

// LineGuard — декоратор, сериализующий команды по последовательным линиям.
//
// Инструменты, разделяющие линию (например насос и клапан на одном
// порту), получают общий мьютекс. Захват линии прерываем контекстом,
// но уже начатая команда не прерывается: линию нельзя бросить
// посреди обмена.
type LineGuard struct {
	next  Dispatcher
	lines map[string]string // инструмент -> адрес линии

	mu    sync.Mutex
	locks map[string]*lineLock
}

type lineLock struct {
	ch chan struct{}
}

// NewLineGuard создаёт декоратор поверх next.
// lines отображает имя инструмента в адрес его линии.
func NewLineGuard(next Dispatcher, lines map[string]string) *LineGuard {
	return &LineGuard{
		next:  next,
		lines: lines,
		locks: make(map[string]*lineLock),
	}
}

// Dispatch захватывает линию инструмента и передаёт команду дальше.
func (g *LineGuard) Dispatch(ctx context.Context, cmd Command, timeout time.Duration) (*Outcome, error) {
	address, ok := g.lines[cmd.Instrument]
	if !ok {
		// Инструмент без линии (эмуляция, сеть) не сериализуется.
		return g.next.Dispatch(ctx, cmd, timeout)
	}

	lock := g.lockFor(address)
	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		return nil, &DispatchError{Instrument: cmd.Instrument, Command: cmd.Name, Cause: ctx.Err()}
	}
	defer func() { <-lock.ch }()

	return g.next.Dispatch(ctx, cmd, timeout)
}

func (g *LineGuard) lockFor(address string) *lineLock {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.locks[address]; ok {
		return l
	}
	l := &lineLock{ch: make(chan struct{}, 1)}
	g.locks[address] = l
	return l
}
