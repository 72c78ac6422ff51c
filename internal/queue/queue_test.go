package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Sequora/internal/domain"
)

type execFunc func(ctx context.Context, task *domain.Task) error

func (f execFunc) Execute(ctx context.Context, task *domain.Task) error {
	return f(ctx, task)
}

// recorder накапливает выполненные команды в порядке запуска.
type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) executor() Executor {
	return execFunc(func(ctx context.Context, task *domain.Task) error {
		r.mu.Lock()
		r.seen = append(r.seen, task.Command)
		r.mu.Unlock()
		return nil
	})
}

func (r *recorder) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func newTask(command string) *domain.Task {
	return domain.NewTask(domain.SubsystemPump, "PumpA", command, nil)
}

func waitFinished(t *testing.T, tasks ...*domain.Task) {
	t.Helper()
	for _, task := range tasks {
		select {
		case <-task.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("task %s (%s) did not finish", task.ID, task.Command)
		}
	}
}

func startQueue(t *testing.T, cfg Config, exec Executor) *TaskQueue {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "A/pump"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = domain.SubsystemPump
	}
	q := New(cfg, exec, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go q.Run(ctx)
	return q
}

func TestQueueRunsInOrder(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, Config{}, rec.executor())

	a := q.Enqueue(newTask("a"))
	b := q.Enqueue(newTask("b"))
	c := q.Enqueue(newTask("c"))
	waitFinished(t, a, b, c)

	got := rec.commands()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", got, want)
		}
	}
}

func TestQueueReorderAndDelete(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, Config{}, rec.executor())
	q.Pause()

	a := q.Enqueue(newTask("a"))
	b := q.Enqueue(newTask("b"))
	c := q.Enqueue(newTask("c"))

	// Перестановка хвоста в голову: порядок C, A, B.
	if err := q.Reorder(c.ID, 0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	// Удаление из середины: порядок C, A.
	if !q.Delete(b.ID) {
		t.Fatal("Delete returned false for pending task")
	}
	if b.Status() != domain.TaskStatusCancelled {
		t.Fatalf("deleted task status = %s, want CANCELLED", b.Status())
	}

	pending := q.Pending()
	if len(pending) != 2 || pending[0].ID != c.ID || pending[1].ID != a.ID {
		t.Fatalf("pending order = %v, want [c a]", pending)
	}

	q.Resume()
	waitFinished(t, c, a)

	got := rec.commands()
	if len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Fatalf("execution order = %v, want [c a]", got)
	}
}

func TestQueueReorderClampsIndex(t *testing.T) {
	q := startQueue(t, Config{}, execFunc(func(ctx context.Context, task *domain.Task) error {
		return nil
	}))
	q.Pause()

	a := q.Enqueue(newTask("a"))
	b := q.Enqueue(newTask("b"))

	if err := q.Reorder(a.ID, 99); err != nil {
		t.Fatalf("Reorder out of range: %v", err)
	}
	pending := q.Pending()
	if pending[0].ID != b.ID || pending[1].ID != a.ID {
		t.Fatalf("pending = %v, want [b a]", pending)
	}

	if err := q.Reorder(a.ID, -5); err != nil {
		t.Fatalf("Reorder negative: %v", err)
	}
	if q.Pending()[0].ID != a.ID {
		t.Fatal("negative index must clamp to head")
	}
}

func TestQueueMutateRunningTask(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := startQueue(t, Config{}, execFunc(func(ctx context.Context, task *domain.Task) error {
		close(started)
		<-release
		return nil
	}))

	a := q.Enqueue(newTask("a"))
	<-started

	if q.Delete(a.ID) {
		t.Error("Delete must refuse a RUNNING task")
	}

	err := q.Reorder(a.ID, 0)
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Reorder on RUNNING: got %v, want *InvalidStateError", err)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState sentinel, got %v", err)
	}

	close(release)
	waitFinished(t, a)
	if a.Status() != domain.TaskStatusDone {
		t.Fatalf("status = %s, want DONE", a.Status())
	}
}

func TestQueueReorderUnknownTask(t *testing.T) {
	q := startQueue(t, Config{}, execFunc(func(ctx context.Context, task *domain.Task) error {
		return nil
	}))
	err := q.Reorder(newTask("ghost").ID, 0)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("got %v, want ErrTaskNotFound", err)
	}
}

func TestQueuePauseDoesNotInterruptRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	rec := &recorder{}
	q := startQueue(t, Config{}, execFunc(func(ctx context.Context, task *domain.Task) error {
		rec.mu.Lock()
		rec.seen = append(rec.seen, task.Command)
		rec.mu.Unlock()
		if task.Command == "slow" {
			close(started)
			<-release
		}
		return nil
	}))

	slow := q.Enqueue(newTask("slow"))
	next := q.Enqueue(newTask("next"))

	<-started
	q.Pause()
	close(release)
	waitFinished(t, slow)

	if slow.Status() != domain.TaskStatusDone {
		t.Fatalf("running task must complete through pause, got %s", slow.Status())
	}

	// Следующая задача не стартует, пока очередь на паузе.
	time.Sleep(50 * time.Millisecond)
	if next.Status() != domain.TaskStatusPending {
		t.Fatalf("paused queue started a task: %s", next.Status())
	}

	q.Resume()
	waitFinished(t, next)
}

func TestQueueDependencyGating(t *testing.T) {
	recA := &recorder{}
	recB := &recorder{}
	qa := startQueue(t, Config{Name: "A/pump"}, recA.executor())

	releaseDep := make(chan struct{})
	qb := startQueue(t, Config{Name: "A/temp"}, execFunc(func(ctx context.Context, task *domain.Task) error {
		recB.mu.Lock()
		recB.seen = append(recB.seen, task.Command)
		recB.mu.Unlock()
		<-releaseDep
		return nil
	}))

	dep := qb.Enqueue(newTask("warm_up"))
	dependent := newTask("pump_after_warm")
	dependent.DependsOn = []*domain.Task{dep}
	qa.Enqueue(dependent)

	// Зависимая задача ждёт и остаётся PENDING.
	time.Sleep(50 * time.Millisecond)
	if dependent.Status() != domain.TaskStatusPending {
		t.Fatalf("dependent started before dependency: %s", dependent.Status())
	}
	if len(recA.commands()) != 0 {
		t.Fatal("dependent dispatched before dependency finished")
	}

	close(releaseDep)
	waitFinished(t, dep, dependent)
	if dependent.Status() != domain.TaskStatusDone {
		t.Fatalf("dependent status = %s, want DONE", dependent.Status())
	}
}

func TestQueueDependencyFailurePropagates(t *testing.T) {
	rec := &recorder{}
	qa := startQueue(t, Config{Name: "A/pump"}, rec.executor())
	qb := startQueue(t, Config{Name: "A/temp"}, execFunc(func(ctx context.Context, task *domain.Task) error {
		return errors.New("нагреватель не отвечает")
	}))

	dep := qb.Enqueue(newTask("warm_up"))
	dependent := newTask("pump_after_warm")
	dependent.DependsOn = []*domain.Task{dep}
	qa.Enqueue(dependent)

	waitFinished(t, dep, dependent)

	if dependent.Status() != domain.TaskStatusFailed {
		t.Fatalf("dependent status = %s, want FAILED", dependent.Status())
	}
	if !strings.Contains(dependent.Err(), dep.ID.String()) {
		t.Errorf("error must name the failed dependency: %q", dependent.Err())
	}
	if len(rec.commands()) != 0 {
		t.Fatal("dependent must never be dispatched")
	}
	// PolicyHalt по умолчанию: очередь встала.
	if !qa.Paused() {
		t.Error("queue must halt after failure under PolicyHalt")
	}
}

func TestQueueAlwaysRunDispatchesAfterDependencyFailure(t *testing.T) {
	rec := &recorder{}
	qa := startQueue(t, Config{Name: "A/pump", OnFailure: PolicySkip}, rec.executor())
	qb := startQueue(t, Config{Name: "A/temp"}, execFunc(func(ctx context.Context, task *domain.Task) error {
		return errors.New("нагреватель не отвечает")
	}))

	dep := qb.Enqueue(newTask("warm_up"))

	// Финализатор обязан отработать и после отказа зависимости.
	finalizer := newTask("release")
	finalizer.AlwaysRun = true
	finalizer.DependsOn = []*domain.Task{dep}
	qa.Enqueue(finalizer)

	// Обычная задача за той же зависимостью отказывает без диспетчеризации.
	plain := newTask("capture")
	plain.DependsOn = []*domain.Task{dep}
	qa.Enqueue(plain)

	waitFinished(t, dep, finalizer, plain)

	if finalizer.Status() != domain.TaskStatusDone {
		t.Fatalf("finalizer status = %s, want DONE", finalizer.Status())
	}
	if plain.Status() != domain.TaskStatusFailed {
		t.Fatalf("plain status = %s, want FAILED", plain.Status())
	}
	got := rec.commands()
	if len(got) != 1 || got[0] != "release" {
		t.Fatalf("commands = %v, want [release]", got)
	}
}

func TestQueuePolicySkipContinues(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, Config{OnFailure: PolicySkip}, execFunc(func(ctx context.Context, task *domain.Task) error {
		rec.mu.Lock()
		rec.seen = append(rec.seen, task.Command)
		rec.mu.Unlock()
		if task.Command == "bad" {
			return errors.New("отказ")
		}
		return nil
	}))

	bad := q.Enqueue(newTask("bad"))
	good := q.Enqueue(newTask("good"))
	waitFinished(t, bad, good)

	if bad.Status() != domain.TaskStatusFailed {
		t.Fatalf("bad status = %s, want FAILED", bad.Status())
	}
	if good.Status() != domain.TaskStatusDone {
		t.Fatalf("good status = %s, want DONE", good.Status())
	}
	if q.Paused() {
		t.Error("PolicySkip must not pause the queue")
	}
}

func TestQueueDeleteHeadWaitingOnDependency(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, Config{}, rec.executor())

	// Зависимость никогда не завершится.
	blocker := newTask("never")
	head := newTask("blocked")
	head.DependsOn = []*domain.Task{blocker}
	q.Enqueue(head)
	free := q.Enqueue(newTask("free"))

	// Голова ждёт зависимость, но остаётся PENDING и удаляема.
	time.Sleep(50 * time.Millisecond)
	if !q.Delete(head.ID) {
		t.Fatal("head waiting on dependency must be deletable")
	}

	waitFinished(t, free)
	got := rec.commands()
	if len(got) != 1 || got[0] != "free" {
		t.Fatalf("commands = %v, want [free]", got)
	}
}

func TestQueueClear(t *testing.T) {
	q := startQueue(t, Config{}, execFunc(func(ctx context.Context, task *domain.Task) error {
		return nil
	}))
	q.Pause()

	a := q.Enqueue(newTask("a"))
	b := q.Enqueue(newTask("b"))

	if n := q.Clear(); n != 2 {
		t.Fatalf("Clear = %d, want 2", n)
	}
	if a.Status() != domain.TaskStatusCancelled || b.Status() != domain.TaskStatusCancelled {
		t.Fatal("cleared tasks must be CANCELLED")
	}
	if q.Len() != 0 {
		t.Fatal("queue must be empty after Clear")
	}
}

func TestQueueOnTransition(t *testing.T) {
	var mu sync.Mutex
	var statuses []domain.TaskStatus

	q := New(Config{Name: "A/pump"}, execFunc(func(ctx context.Context, task *domain.Task) error {
		return nil
	}), nil)
	q.OnTransition = func(task *domain.Task) {
		mu.Lock()
		statuses = append(statuses, task.Status())
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	a := q.Enqueue(newTask("a"))
	waitFinished(t, a)

	// Завершение видно хуку после RUNNING.
	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(statuses)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("transition hook not called")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if statuses[0] != domain.TaskStatusRunning || statuses[1] != domain.TaskStatusDone {
		t.Fatalf("transitions = %v, want [RUNNING DONE]", statuses)
	}
}

func TestQueueFindAndHistory(t *testing.T) {
	q := startQueue(t, Config{HistoryLimit: 2}, execFunc(func(ctx context.Context, task *domain.Task) error {
		return nil
	}))

	a := q.Enqueue(newTask("a"))
	b := q.Enqueue(newTask("b"))
	c := q.Enqueue(newTask("c"))
	waitFinished(t, a, b, c)

	if q.Find(c.ID) == nil {
		t.Fatal("finished task must be findable in history")
	}
	if got := len(q.History()); got != 2 {
		t.Fatalf("history length = %d, want limit 2", got)
	}
	// Самая старая задача вытеснена.
	if q.Find(a.ID) != nil {
		t.Fatal("evicted task must not be findable")
	}
}
