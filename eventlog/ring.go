package eventlog

import "sync"

// Ring is a fixed-size, concurrency-safe buffer that overwrites its oldest
// element when full.
type Ring[T any] struct {
	mu   sync.RWMutex
	data []T
	head int // Next write position
	size int
}

// NewRing creates a Ring holding up to capacity elements.
// Panics if capacity is less than 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ring capacity must be at least 1")
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends item, evicting the oldest element when full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	if r.size < len(r.data) {
		r.size++
	}
}

// Recent returns up to n elements, newest first. The slice is a copy.
func (r *Ring[T]) Recent(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		idx := (r.head - 1 - i + 2*len(r.data)) % len(r.data)
		out[i] = r.data[idx]
	}
	return out
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// Clear removes every element and returns how many there were.
func (r *Ring[T]) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.size
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head, r.size = 0, 0
	return n
}
