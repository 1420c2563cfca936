// Package shutdown coordinates graceful termination: it tracks in-flight
// streams, stops admitting new ones, waits for the rest and then runs the
// registered cleanup hooks in priority order.
package shutdown

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Begin once shutdown has started.
var ErrClosed = errors.New("shutting down")

// StreamTracker counts in-flight operations by kind ("stream", "chunk").
//
// Usage:
//
//	release, err := tracker.Begin("stream")
//	if err != nil {
//	    // reply 503
//	}
//	defer release()
type StreamTracker struct {
	mu     sync.Mutex
	active map[string]int64
	total  int64
	closed bool
	idle   chan struct{} // Closed when total drops to zero after Close
}

// NewStreamTracker creates an open tracker.
func NewStreamTracker() *StreamTracker {
	return &StreamTracker{active: make(map[string]int64)}
}

// Begin registers an operation of the given kind. The returned release
// function must be called exactly once; extra calls are ignored.
func (t *StreamTracker) Begin(kind string) (release func(), err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return func() {}, ErrClosed
	}
	t.active[kind]++
	t.total++

	var once sync.Once
	return func() { once.Do(func() { t.end(kind) }) }, nil
}

func (t *StreamTracker) end(kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active[kind]--
	if t.active[kind] == 0 {
		delete(t.active, kind)
	}
	t.total--
	if t.total == 0 && t.idle != nil {
		close(t.idle)
		t.idle = nil
	}
}

// Close stops admitting operations. Running ones are unaffected.
func (t *StreamTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Closed reports whether Close has been called.
func (t *StreamTracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Wait blocks until no operation is active or ctx is done, and returns
// ctx.Err() in the latter case.
func (t *StreamTracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	if t.total == 0 {
		t.mu.Unlock()
		return nil
	}
	if t.idle == nil {
		t.idle = make(chan struct{})
	}
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the number of running operations.
func (t *StreamTracker) Active() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ActiveByKind returns a copy of the running operation counts per kind.
func (t *StreamTracker) ActiveByKind() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int64, len(t.active))
	for k, v := range t.active {
		out[k] = v
	}
	return out
}
