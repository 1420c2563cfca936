package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStreamTracker(t *testing.T) {
	tr := NewStreamTracker()

	r1, err := tr.Begin("stream")
	if err != nil {
		t.Fatal(err)
	}
	r2, _ := tr.Begin("chunk")
	r3, _ := tr.Begin("stream")

	if tr.Active() != 3 {
		t.Errorf("Active() = %d", tr.Active())
	}
	if by := tr.ActiveByKind(); by["stream"] != 2 || by["chunk"] != 1 {
		t.Errorf("ActiveByKind() = %v", by)
	}

	r1()
	r1()
	if tr.Active() != 2 {
		t.Errorf("double release changed the count: %d", tr.Active())
	}

	tr.Close()
	if _, err := tr.Begin("stream"); !errors.Is(err, ErrClosed) {
		t.Errorf("Begin() after Close() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- tr.Wait(context.Background()) }()

	r2()
	select {
	case <-done:
		t.Fatal("Wait() returned with a stream still running")
	case <-time.After(20 * time.Millisecond):
	}
	r3()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after the last release")
	}
}

func TestStreamTrackerWaitTimeout(t *testing.T) {
	tr := NewStreamTracker()
	if _, err := tr.Begin("stream"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tr.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestHooksOrder(t *testing.T) {
	var h Hooks
	var order []string
	add := func(name string, prio int, err error) {
		h.Register(name, prio, func(context.Context) error {
			order = append(order, name)
			return err
		})
	}
	add("db", PriorityStorage, nil)
	add("http", PriorityHTTP, nil)
	add("log-queue", PriorityLogQueue, errors.New("drain timeout"))
	add("retention", PriorityWorkers, nil)
	add("metrics", PriorityWorkers, nil)

	errs := h.Run(context.Background())
	want := []string{"http", "retention", "metrics", "log-queue", "db"}
	if len(order) != len(want) {
		t.Fatalf("ran %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, order[i], want[i])
		}
	}
	if len(errs) != 1 || errs[0].Error() != "log-queue: drain timeout" {
		t.Errorf("Run() errors = %v", errs)
	}
	if again := h.Run(context.Background()); again != nil {
		t.Errorf("second Run() = %v", again)
	}
}

func TestManagerShutdownWaitsForStreams(t *testing.T) {
	m := NewManager(nil, time.Second)
	release, err := m.Tracker().Begin("stream")
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var hookRan time.Time
	m.Register("db", PriorityStorage, func(context.Context) error {
		mu.Lock()
		hookRan = time.Now()
		mu.Unlock()
		return nil
	})

	released := make(chan time.Time, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		released <- time.Now()
		release()
	}()

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	at := <-released
	mu.Lock()
	defer mu.Unlock()
	if hookRan.Before(at) {
		t.Error("hook ran before the stream finished")
	}
	if m.Context().Err() == nil {
		t.Error("Context() not cancelled after Shutdown()")
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

func TestManagerShutdownTimeout(t *testing.T) {
	m := NewManager(nil, 20*time.Millisecond)
	if _, err := m.Tracker().Begin("stream"); err != nil {
		t.Fatal(err)
	}
	ran := false
	m.Register("db", PriorityStorage, func(context.Context) error { ran = true; return nil })

	start := time.Now()
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Shutdown() ignored its timeout")
	}
	if !ran {
		t.Error("hooks skipped after timeout")
	}
}

func TestManagerHookErrors(t *testing.T) {
	m := NewManager(nil, time.Second)
	m.Register("bad", PriorityHTTP, func(context.Context) error { return errors.New("boom") })
	if err := m.Shutdown(); err == nil {
		t.Error("Shutdown() returned nil despite a failing hook")
	}
}
