// Package ingest wires the data flow together: batches of raw records
// arrive over the pipeline bus, become documents in the day-partitioned
// segment store, are projected into the property graph, and contribute
// partial catalogs. The pipeline maintains the ingest-queue-depth signal
// the compute scheduler throttles on.
package ingest

import (
	"time"
)

// Batcher accumulates items until a size cap or a flush interval is
// reached. Not safe for concurrent use; each pipeline goroutine owns
// its own batcher.
type Batcher[T any] struct {
	maxSize  int
	interval time.Duration

	items     []T
	lastFlush time.Time
}

// NewBatcher creates a batcher flushing at maxSize items or after
// interval since the previous flush, whichever comes first.
func NewBatcher[T any](maxSize int, interval time.Duration) *Batcher[T] {
	return &Batcher[T]{
		maxSize:   maxSize,
		interval:  interval,
		lastFlush: time.Now(),
	}
}

// Add appends one item and returns a full batch when the size cap is
// hit, nil otherwise.
func (b *Batcher[T]) Add(item T) []T {
	b.items = append(b.items, item)
	if len(b.items) >= b.maxSize {
		return b.take()
	}
	return nil
}

// Pending returns the number of buffered items.
func (b *Batcher[T]) Pending() int { return len(b.items) }

// Due reports whether the flush interval has elapsed with items
// buffered.
func (b *Batcher[T]) Due() bool {
	return len(b.items) > 0 && time.Since(b.lastFlush) >= b.interval
}

// Flush returns the buffered items (nil when empty) and resets the
// interval clock.
func (b *Batcher[T]) Flush() []T {
	if len(b.items) == 0 {
		b.lastFlush = time.Now()
		return nil
	}
	return b.take()
}

func (b *Batcher[T]) take() []T {
	out := b.items
	b.items = nil
	b.lastFlush = time.Now()
	return out
}
