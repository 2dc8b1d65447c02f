// Package feed fans newly ingested log records and alerts out to live
// subscribers. A Ring decides what is retained; a Cursor decides what a
// subscriber has already seen.
package feed

import "sync"

// Ring is a fixed-capacity, append-only buffer. Every appended item gets the
// next sequence number, starting at 1. When full, the oldest item is evicted.
// Append never waits for readers.
type Ring[T any] struct {
	mu     sync.RWMutex
	items  []T
	start  int
	count  int
	head   uint64
	notify chan struct{}
}

// NewRing returns an empty ring holding at most capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		items:  make([]T, capacity),
		notify: make(chan struct{}),
	}
}

// Append stores item, evicting the oldest one if the ring is full, and wakes
// every waiting reader. It returns the sequence number of item.
func (r *Ring[T]) Append(item T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.items)
	if r.count < capacity {
		r.items[(r.start+r.count)%capacity] = item
		r.count++
	} else {
		r.items[r.start] = item
		r.start = (r.start + 1) % capacity
	}
	r.head++

	close(r.notify)
	r.notify = make(chan struct{})

	return r.head
}

// Changed returns a channel that is closed on the next Append.
func (r *Ring[T]) Changed() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notify
}

// Head returns the sequence number of the newest item, 0 if none.
func (r *Ring[T]) Head() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// Len returns the number of retained items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Snapshot returns the retained items, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Since returns the retained items with a sequence number greater than
// after, oldest first, together with the sequence number to resume from and
// the number of items after `after` that were already evicted.
func (r *Ring[T]) Since(after uint64) (items []T, next uint64, missed uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if after >= r.head {
		return nil, r.head, 0
	}

	oldest := r.head - uint64(r.count) + 1
	first := after + 1
	if first < oldest {
		missed = oldest - first
		first = oldest
	}

	items = make([]T, 0, r.head-first+1)
	for seq := first; seq <= r.head; seq++ {
		idx := (r.start + int(seq-oldest)) % len(r.items)
		items = append(items, r.items[idx])
	}
	return items, r.head, missed
}
