package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"audiostream/logging"
)

// DefaultTimeout bounds the wait for in-flight streams.
const DefaultTimeout = 30 * time.Second

// Manager ties the stream tracker, the cleanup hooks and OS signals
// together. The first SIGINT or SIGTERM cancels Context; a second one exits
// the process immediately.
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration
	tracker *StreamTracker
	hooks   Hooks

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	signals chan os.Signal
	signal  os.Signal
	done    bool

	exit func(code int)
}

// NewManager creates a Manager. A non-positive timeout selects
// DefaultTimeout.
func NewManager(logger *logging.Logger, timeout time.Duration) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:  logger.Named("shutdown"),
		timeout: timeout,
		tracker: NewStreamTracker(),
		ctx:     ctx,
		cancel:  cancel,
		exit:    os.Exit,
	}
}

// Context is cancelled when shutdown is requested.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Tracker returns the in-flight stream tracker.
func (m *Manager) Tracker() *StreamTracker {
	return m.tracker
}

// Register adds a cleanup hook.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.hooks.Register(name, priority, fn)
}

// Listen starts watching SIGINT and SIGTERM. Calling it twice is a no-op.
func (m *Manager) Listen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signals != nil {
		return
	}

	m.signals = make(chan os.Signal, 2)
	signal.Notify(m.signals, os.Interrupt, syscall.SIGTERM)
	go func(ch <-chan os.Signal) {
		count := 0
		for sig := range ch {
			count++
			if count == 1 {
				m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
				m.mu.Lock()
				m.signal = sig
				m.mu.Unlock()
				m.cancel()
				continue
			}
			m.logger.Warn("second signal received, exiting now", zap.String("signal", sig.String()))
			m.exit(1)
		}
	}(m.signals)
}

// Signal returns the signal that started shutdown, or nil when shutdown
// was triggered some other way or has not started.
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signal
}

// Trigger requests shutdown without a signal, e.g. from a service manager.
func (m *Manager) Trigger() {
	m.cancel()
}

// Shutdown stops admitting streams, waits up to the timeout for running
// ones and then runs the hooks with whatever time remains (at least one
// second). It is idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	if m.signals != nil {
		signal.Stop(m.signals)
		close(m.signals)
	}
	m.mu.Unlock()
	m.cancel()

	start := time.Now()
	m.tracker.Close()
	if n := m.tracker.Active(); n > 0 {
		m.logger.Info("waiting for in-flight streams", zap.Int64("active", n))
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), m.timeout)
	err := m.tracker.Wait(waitCtx)
	cancelWait()
	if err != nil {
		m.logger.Warn("streams still running at shutdown timeout",
			zap.Int64("remaining", m.tracker.Active()), zap.Duration("waited", time.Since(start)))
	}

	remaining := m.timeout - time.Since(start)
	if remaining < time.Second {
		remaining = time.Second
	}
	hookCtx, cancelHooks := context.WithTimeout(context.Background(), remaining)
	defer cancelHooks()

	m.logger.Debug("running shutdown hooks", zap.Strings("hooks", m.hooks.Names()))
	errs := m.hooks.Run(hookCtx)
	for _, e := range errs {
		m.logger.Error("shutdown hook failed", zap.Error(e))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors", len(errs))
	}

	m.logger.Info("shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}
