package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEmulatedDispatch(t *testing.T) {
	d := NewEmulated(nil)

	out, err := d.Dispatch(context.Background(), Command{
		Instrument: "PumpA",
		Name:       "pump",
		Args:       map[string]any{"volume": 500.0},
	}, time.Second)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out == nil {
		t.Fatal("expected outcome")
	}

	log := d.Log()
	if len(log) != 1 || log[0].Instrument != "PumpA" {
		t.Fatalf("log = %+v, want one PumpA command", log)
	}
}

func TestEmulatedDispatchFailure(t *testing.T) {
	d := NewEmulated(nil)
	d.FailWith("ValveA", "select", errors.New("порт заклинило"))

	_, err := d.Dispatch(context.Background(), Command{Instrument: "ValveA", Name: "select"}, time.Second)
	if err == nil {
		t.Fatal("expected error")
	}

	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("expected *DispatchError, got %T", err)
	}
	if !errors.Is(err, ErrDispatch) {
		t.Errorf("expected ErrDispatch sentinel, got %v", err)
	}

	// Другие команды того же инструмента не затронуты.
	if _, err := d.Dispatch(context.Background(), Command{Instrument: "ValveA", Name: "home"}, time.Second); err != nil {
		t.Errorf("unrelated command failed: %v", err)
	}

	d.FailWith("ValveA", "select", nil)
	if _, err := d.Dispatch(context.Background(), Command{Instrument: "ValveA", Name: "select"}, time.Second); err != nil {
		t.Errorf("command still failing after reset: %v", err)
	}
}

func TestEmulatedDispatchTimeout(t *testing.T) {
	d := NewEmulated(nil)
	d.Hang("Camera", "capture", true)

	start := time.Now()
	_, err := d.Dispatch(context.Background(), Command{Instrument: "Camera", Name: "capture"}, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("dispatch did not return promptly after timeout")
	}

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout sentinel, got %v", err)
	}
	if timeoutErr.Timeout != 50*time.Millisecond {
		t.Errorf("timeout in error = %v, want 50ms", timeoutErr.Timeout)
	}
}

func TestEmulatedDispatchCancelled(t *testing.T) {
	d := NewEmulated(nil)
	d.Hang("Camera", "capture", true)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Dispatch(ctx, Command{Instrument: "Camera", Name: "capture"}, time.Minute)
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("expected *DispatchError on cancel, got %v", err)
	}
}

// recordingDispatcher фиксирует максимум одновременных команд по линиям.
type recordingDispatcher struct {
	mu      sync.Mutex
	active  map[string]int
	maxSeen map[string]int
	lines   map[string]string
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, cmd Command, timeout time.Duration) (*Outcome, error) {
	line := r.lines[cmd.Instrument]

	r.mu.Lock()
	r.active[line]++
	if r.active[line] > r.maxSeen[line] {
		r.maxSeen[line] = r.active[line]
	}
	r.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	r.mu.Lock()
	r.active[line]--
	r.mu.Unlock()

	return &Outcome{}, nil
}

func TestLineGuardSerializesSharedLine(t *testing.T) {
	lines := map[string]string{
		"PumpA":  "COM3",
		"ValveA": "COM3",
		"PumpB":  "COM4",
	}
	rec := &recordingDispatcher{
		active:  make(map[string]int),
		maxSeen: make(map[string]int),
		lines:   lines,
	}
	guard := NewLineGuard(rec, lines)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, inst := range []string{"PumpA", "ValveA", "PumpB"} {
			wg.Add(1)
			go func(inst string) {
				defer wg.Done()
				_, _ = guard.Dispatch(context.Background(), Command{Instrument: inst, Name: "cmd"}, time.Second)
			}(inst)
		}
	}
	wg.Wait()

	if rec.maxSeen["COM3"] > 1 {
		t.Errorf("COM3 saw %d concurrent commands, want at most 1", rec.maxSeen["COM3"])
	}
	if rec.maxSeen["COM4"] == 0 {
		t.Error("COM4 saw no commands")
	}
}

func TestLineGuardUnknownInstrumentPassesThrough(t *testing.T) {
	inner := NewEmulated(nil)
	guard := NewLineGuard(inner, map[string]string{})

	if _, err := guard.Dispatch(context.Background(), Command{Instrument: "Ghost", Name: "noop"}, time.Second); err != nil {
		t.Fatalf("pass-through failed: %v", err)
	}
}
