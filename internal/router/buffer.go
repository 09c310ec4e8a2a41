package router

import "sync"

// GrowableBuffer is a thread-safe FIFO of pending items. It grows without
// bound between drains; the engine appends from the read loop and takes
// everything once per flush.
type GrowableBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int // capacity given to the slice after each drain
	closed   bool

	stats BufferStats
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalDrained  int64
	TotalDropped  int64
	ResizeCount   int
}

// NewGrowableBuffer creates a new buffer with the given initial capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &GrowableBuffer[T]{
		items:    make([]T, 0, initialCapacity),
		capacity: initialCapacity,
	}
}

// Send appends an item. Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if len(b.items) == cap(b.items) {
		grown := make([]T, len(b.items), 2*cap(b.items))
		copy(grown, b.items)
		b.items = grown
		b.stats.ResizeCount++
	}
	b.items = append(b.items, item)
	b.stats.TotalReceived++
	return true
}

// Drain removes and returns every buffered item in arrival order. The
// returned slice is owned by the caller. A buffer that grew keeps its larger
// capacity for the next batch.
func (b *GrowableBuffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return nil
	}

	out := b.items
	if c := cap(out); c > b.capacity {
		b.capacity = c
	}
	b.items = make([]T, 0, b.capacity)
	b.stats.TotalDrained += int64(len(out))
	return out
}

// Reset discards buffered items without closing the buffer.
func (b *GrowableBuffer[T]) Reset() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resetLocked()
}

func (b *GrowableBuffer[T]) resetLocked() int {
	n := len(b.items)
	clear(b.items)
	b.items = b.items[:0]
	b.stats.TotalDropped += int64(n)
	return n
}

// Close discards buffered items and rejects further sends.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.resetLocked()
}

// Len returns the current number of items in the buffer.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Count = len(b.items)
	s.Capacity = cap(b.items)
	return s
}
