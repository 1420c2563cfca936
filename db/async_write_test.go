package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAsyncWriterProcessesQueue(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	w := NewAsyncWriter(func(ctx context.Context, op WriteOperation) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, op.Query)
		return nil
	}, AsyncWriterConfig{ChannelCapacity: 10})
	w.Start()

	for _, q := range []string{"a", "b", "c"} {
		if !w.Enqueue(q) {
			t.Fatalf("Enqueue(%q) = false", q)
		}
	}

	if !w.Stop(time.Second) {
		t.Fatal("Stop() timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 || seen[0] != "a" || seen[2] != "c" {
		t.Errorf("processed %v, want [a b c] in order", seen)
	}
	if stats := w.Stats(); stats.Written != 3 || stats.Dropped != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestAsyncWriterDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	w := NewAsyncWriter(func(ctx context.Context, op WriteOperation) error {
		<-release
		return nil
	}, AsyncWriterConfig{ChannelCapacity: 1})
	w.Start()
	defer func() {
		close(release)
		w.Stop(time.Second)
	}()

	// The first op may be picked up by the goroutine; fill until a drop.
	dropped := false
	for i := 0; i < 5; i++ {
		if !w.Enqueue("x") {
			dropped = true
			break
		}
	}
	if !dropped {
		t.Fatal("Enqueue never reported a full queue")
	}
	if w.Stats().Dropped == 0 {
		t.Error("Dropped counter not incremented")
	}
}

func TestAsyncWriterRejectsBeforeStartAndAfterStop(t *testing.T) {
	w := NewAsyncWriter(func(ctx context.Context, op WriteOperation) error { return nil }, AsyncWriterConfig{})

	if w.Enqueue("early") {
		t.Error("Enqueue before Start should fail")
	}

	w.Start()
	w.Stop(time.Second)

	if w.Enqueue("late") {
		t.Error("Enqueue after Stop should fail")
	}
	if !w.Stop(time.Second) {
		t.Error("second Stop should return true")
	}
}

func TestAsyncWriterReportsErrors(t *testing.T) {
	errCh := make(chan error, 1)
	w := NewAsyncWriter(func(ctx context.Context, op WriteOperation) error {
		return errors.New("disk full")
	}, AsyncWriterConfig{OnError: func(op WriteOperation, err error) { errCh <- err }})
	w.Start()
	w.Enqueue("x")
	w.Stop(time.Second)

	select {
	case err := <-errCh:
		if err.Error() != "disk full" {
			t.Errorf("OnError got %v", err)
		}
	default:
		t.Fatal("OnError was not called")
	}
	if w.Stats().Failed != 1 {
		t.Errorf("Failed = %d, want 1", w.Stats().Failed)
	}
}

func TestRepositoryInsertLogAsync(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database, nil)

	if repo.InsertLogAsync(LogEntry{Type: "stream"}) {
		t.Error("InsertLogAsync without a writer should return false")
	}

	w := NewAsyncWriter(repo.CreateAsyncWriteHandler(), AsyncWriterConfig{})
	repo.AttachAsyncWriter(w)
	w.Start()

	if !repo.InsertLogAsync(LogEntry{Type: "stream", StatusCode: 200}) {
		t.Fatal("InsertLogAsync() = false")
	}
	w.Stop(5 * time.Second)

	recent, err := repo.RecentLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(recent) != 1 || recent[0].StatusCode != 200 {
		t.Errorf("RecentLogs() = %+v", recent)
	}
}
