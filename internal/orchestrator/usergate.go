package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// UserGate — ожидание подтверждений оператора.
//
// Задача USER блокирует свою очередь, пока оператор не подтвердит
// сообщение через API или CLI. Подтверждение адресуется по ID задачи.
type UserGate struct {
	mu      sync.Mutex
	waiting map[uuid.UUID]chan struct{}
}

// NewUserGate создаёт пустой реестр ожиданий.
func NewUserGate() *UserGate {
	return &UserGate{waiting: make(map[uuid.UUID]chan struct{})}
}

// Wait регистрирует ожидание подтверждения для задачи и блокируется
// до подтверждения или отмены контекста.
func (g *UserGate) Wait(ctx context.Context, taskID uuid.UUID) error {
	g.mu.Lock()
	ch, ok := g.waiting[taskID]
	if !ok {
		ch = make(chan struct{})
		g.waiting[taskID] = ch
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.waiting, taskID)
		g.mu.Unlock()
	}()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Confirm подтверждает сообщение задачи.
// Возвращает ErrNotWaiting, если задача не ждёт подтверждения.
func (g *UserGate) Confirm(taskID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.waiting[taskID]
	if !ok {
		return ErrNotWaiting
	}
	close(ch)
	delete(g.waiting, taskID)
	return nil
}

// Pending возвращает ID задач, ждущих подтверждения.
func (g *UserGate) Pending() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]uuid.UUID, 0, len(g.waiting))
	for id := range g.waiting {
		out = append(out, id)
	}
	return out
}
