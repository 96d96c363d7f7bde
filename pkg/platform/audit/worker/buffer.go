package worker

import (
	"sync"

	audit "regassist/pkg/platform/audit"
)

// RingBuffer is a bounded, thread-safe queue of audit items awaiting a sink.
// When full, the oldest items are dropped to make room for new ones; the
// store still holds every item, so a drop only loses the mirror copy.
type RingBuffer struct {
	mu       sync.Mutex
	items    []audit.Item
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int
	dropped  int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		items:    make([]audit.Item, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an item, dropping the oldest if necessary.
func (b *RingBuffer) Enqueue(item audit.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// DequeueBatch removes up to n items in arrival order.
func (b *RingBuffer) DequeueBatch(n int) []audit.Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	n = min(n, b.count)
	result := make([]audit.Item, n)
	for i := range n {
		result[i] = b.items[b.tail]
		b.items[b.tail] = audit.Item{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Len returns the number of queued items.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of items dropped on overflow.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
