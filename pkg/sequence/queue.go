package sequence

import "sync"

// Queue is a bounded, thread-safe FIFO. Producers enqueue from arbitrary
// goroutines; a single consumer drains it at a point of its choosing. When
// the queue is full the oldest element is discarded, so a stalled consumer
// sheds the stalest work first.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	max     int
	dropped uint64
}

// NewQueue creates a queue that holds at most capacity elements.
// A capacity of zero or less means unbounded.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{max: capacity}
}

// Enqueue appends value to the tail. It reports whether an older element was
// discarded to make room.
func (q *Queue[T]) Enqueue(value T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if q.max > 0 && q.lenLocked() >= q.max {
		var zero T
		q.items[q.head] = zero
		q.head++
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, value)
	q.compactLocked()
	return evicted
}

// Dequeue removes and returns the head element.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		var zero T
		return zero, false
	}
	value := q.items[q.head]
	var zero T
	q.items[q.head] = zero // release reference
	q.head++
	q.compactLocked()
	return value, true
}

// Drain removes every queued element and returns them in FIFO order.
// It returns nil when the queue is empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		return nil
	}
	out := make([]T, q.lenLocked())
	copy(out, q.items[q.head:])
	q.items = q.items[:0]
	q.head = 0
	return out
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Dropped returns how many elements have been discarded by overflow.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

// compactLocked shifts surviving elements to the front once the dead prefix
// outgrows the live tail, keeping memory proportional to queue length.
func (q *Queue[T]) compactLocked() {
	if q.head == 0 || q.head <= q.lenLocked() {
		return
	}
	n := copy(q.items, q.items[q.head:])
	for i := n; i < len(q.items); i++ {
		var zero T
		q.items[i] = zero
	}
	q.items = q.items[:n]
	q.head = 0
}
