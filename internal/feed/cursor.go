package feed

import (
	"context"
	"sync"
)

// Cursor tracks one subscriber's position in a Ring. It starts at the ring
// head at creation time, so a subscriber only sees items appended after it
// attached. A Cursor is used by a single goroutine.
type Cursor[T any] struct {
	ring      *Ring[T]
	pos       uint64
	onMissed  func(uint64)
	onClose   func()
	closeOnce sync.Once
}

// NewCursor attaches a cursor at the current head of r.
func NewCursor[T any](r *Ring[T]) *Cursor[T] {
	return &Cursor[T]{ring: r, pos: r.Head()}
}

// Position returns the last sequence number delivered.
func (c *Cursor[T]) Position() uint64 {
	return c.pos
}

// Next blocks until at least one new item is available or ctx is done. It
// returns the new items in order and how many were evicted before this
// subscriber could read them.
func (c *Cursor[T]) Next(ctx context.Context) ([]T, uint64, error) {
	for {
		changed := c.ring.Changed()

		items, next, missed := c.ring.Since(c.pos)
		if len(items) > 0 || missed > 0 {
			c.pos = next
			if missed > 0 && c.onMissed != nil {
				c.onMissed(missed)
			}
			return items, missed, nil
		}

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-changed:
		}
	}
}

// Close releases the subscriber. It is safe to call more than once.
func (c *Cursor[T]) Close() {
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose()
		}
	})
}
