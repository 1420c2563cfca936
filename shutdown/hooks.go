package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func is a cleanup step run during shutdown.
type Func func(ctx context.Context) error

// Hook priorities used by the server. Lower runs first.
const (
	PriorityHTTP     = 10 // Stop accepting connections
	PriorityWorkers  = 20 // Stop retention and other background loops
	PriorityLogQueue = 30 // Drain the async log writer
	PriorityStorage  = 40 // Close the database
	PriorityLogger   = 50 // Flush the logger
)

type hook struct {
	name     string
	priority int
	seq      int
	fn       Func
}

// Hooks is an ordered set of cleanup steps. Steps with equal priority run
// in registration order.
type Hooks struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

// Register adds a step. Registering after Run is a no-op.
func (h *Hooks) Register(name string, priority int, fn Func) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ran {
		return
	}
	h.hooks = append(h.hooks, hook{name: name, priority: priority, seq: len(h.hooks), fn: fn})
}

// Run executes every step once, in order, even when earlier steps fail.
// It returns the failures, each wrapped with its step name.
func (h *Hooks) Run(ctx context.Context) []error {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return nil
	}
	h.ran = true
	ordered := h.sorted()
	h.mu.Unlock()

	var errs []error
	for _, s := range ordered {
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errs
}

// Names returns the step names in execution order.
func (h *Hooks) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ordered := h.sorted()
	names := make([]string, len(ordered))
	for i, s := range ordered {
		names[i] = s.name
	}
	return names
}

func (h *Hooks) sorted() []hook {
	out := make([]hook, len(h.hooks))
	copy(out, h.hooks)
	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}
