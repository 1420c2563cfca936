package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Async writer defaults.
const (
	DefaultChannelCapacity = 256
	DefaultDrainTimeout    = 10 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
)

// WriteOperation is a single queued statement.
type WriteOperation struct {
	Query    string
	Args     []interface{}
	Enqueued time.Time
}

// WriteHandler executes a dequeued operation.
type WriteHandler func(ctx context.Context, op WriteOperation) error

// AsyncWriter moves writes off the request path onto a single background
// goroutine. Enqueue never blocks: when the queue is full the operation is
// dropped and counted.
type AsyncWriter struct {
	queue        chan WriteOperation
	handler      WriteHandler
	onError      func(op WriteOperation, err error)
	writeTimeout time.Duration

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// AsyncWriterConfig configures an AsyncWriter.
type AsyncWriterConfig struct {
	ChannelCapacity int
	WriteTimeout    time.Duration
	// OnError is called from the writer goroutine for each failed write.
	OnError func(op WriteOperation, err error)
}

// NewAsyncWriter creates a writer. Call Start before Enqueue.
func NewAsyncWriter(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}

	return &AsyncWriter{
		queue:        make(chan WriteOperation, config.ChannelCapacity),
		handler:      handler,
		onError:      config.OnError,
		writeTimeout: config.WriteTimeout,
		done:         make(chan struct{}),
	}
}

// Start launches the background goroutine. Calling it twice is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.stopped {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	for {
		select {
		case op := <-w.queue:
			w.execute(op)
		case <-w.done:
			w.drain()
			return
		}
	}
}

// drain empties whatever is still queued once Stop has been requested.
func (w *AsyncWriter) drain() {
	for {
		select {
		case op := <-w.queue:
			w.execute(op)
		default:
			return
		}
	}
}

func (w *AsyncWriter) execute(op WriteOperation) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	if err := w.handler(ctx, op); err != nil {
		w.failed.Add(1)
		if w.onError != nil {
			w.onError(op, err)
		}
		return
	}
	w.written.Add(1)
}

// Enqueue queues a statement without blocking. It returns false when the
// writer is not running or the queue is full.
func (w *AsyncWriter) Enqueue(query string, args ...interface{}) bool {
	w.mu.Lock()
	running := w.started && !w.stopped
	w.mu.Unlock()
	if !running {
		w.dropped.Add(1)
		return false
	}

	select {
	case w.queue <- WriteOperation{Query: query, Args: args, Enqueued: time.Now()}:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Stop signals the goroutine to drain the queue and exit, waiting at most
// timeout. It reports whether the drain finished in time.
func (w *AsyncWriter) Stop(timeout time.Duration) bool {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.stopped = true
		w.mu.Unlock()
		return true
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Pending returns the number of queued operations.
func (w *AsyncWriter) Pending() int {
	return len(w.queue)
}

// AsyncWriterStats is a snapshot of writer counters.
type AsyncWriterStats struct {
	Written int64
	Dropped int64
	Failed  int64
	Pending int
}

// Stats returns the current counters.
func (w *AsyncWriter) Stats() AsyncWriterStats {
	return AsyncWriterStats{
		Written: w.written.Load(),
		Dropped: w.dropped.Load(),
		Failed:  w.failed.Load(),
		Pending: w.Pending(),
	}
}
