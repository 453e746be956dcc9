package logger

import "sync"

// RingBuffer is a fixed-capacity, thread-safe FIFO that drops its oldest
// item when full.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// NewRingBuffer creates a ring buffer. Capacity is at least 1.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	return &RingBuffer[T]{items: make([]T, max(1, capacity))}
}

// Push adds an item, overwriting the oldest if full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = item
	r.next++
	if r.next == len(r.items) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of buffered items.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *RingBuffer[T]) lenLocked() int {
	if r.full {
		return len(r.items)
	}
	return r.next
}

// Last returns up to n of the newest items, oldest first. n <= 0 returns
// everything.
func (r *RingBuffer[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.lenLocked()
	if n <= 0 || n > count {
		n = count
	}

	out := make([]T, n)
	start := r.next - n
	if start < 0 {
		start += len(r.items)
	}
	for i := range out {
		out[i] = r.items[(start+i)%len(r.items)]
	}
	return out
}

// GetAll returns all items in order from oldest to newest.
func (r *RingBuffer[T]) GetAll() []T {
	return r.Last(0)
}

// Clear removes all items.
func (r *RingBuffer[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.items)
	r.next = 0
	r.full = false
}
