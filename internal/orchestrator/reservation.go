package orchestrator

import (
	"context"
	"sync"
)

// Reservation — эксклюзивный доступ флоуселлов к микроскопу.
//
// Микроскоп один, флоуселлов несколько: серия задач съёмки одного
// флоуселла не должна перемежаться задачами другого. Флоуселл
// резервирует микроскоп перед партией съёмки и освобождает после.
type Reservation struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner string
}

// NewReservation создаёт свободную резервацию.
func NewReservation() *Reservation {
	r := &Reservation{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Reserve блокируется, пока микроскоп не освободится, и резервирует
// его за owner. Повторная резервация тем же владельцем допустима.
func (r *Reservation) Reserve(ctx context.Context, owner string) error {
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.owner != "" && r.owner != owner {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.cond.Wait()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.owner = owner
	return nil
}

// Release снимает резервацию, если она принадлежит owner.
func (r *Reservation) Release(owner string) {
	r.mu.Lock()
	if r.owner == owner {
		r.owner = ""
		r.cond.Broadcast()
	}
	r.mu.Unlock()
}

// ForceRelease снимает резервацию независимо от владельца.
// Для полной очистки очередей, когда release мог быть отменён.
func (r *Reservation) ForceRelease() {
	r.mu.Lock()
	if r.owner != "" {
		r.owner = ""
		r.cond.Broadcast()
	}
	r.mu.Unlock()
}

// WaitAvailable блокируется, пока микроскоп занят другим владельцем.
// Резервацию не захватывает.
func (r *Reservation) WaitAvailable(ctx context.Context, owner string) error {
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.owner != "" && r.owner != owner {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.cond.Wait()
	}
	return ctx.Err()
}

// Owner возвращает текущего владельца, пусто если микроскоп свободен.
func (r *Reservation) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}
