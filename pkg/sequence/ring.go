package sequence

// Ring is a fixed-capacity circular buffer. Once full, each push overwrites
// the oldest element. It is not safe for concurrent use; callers that share
// one provide their own synchronization.
type Ring[T any] struct {
	items []T
	next  int
	size  int
}

// NewRing creates a ring holding at most capacity elements.
// Capacity must be positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("sequence: ring capacity must be positive")
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends value, evicting the oldest element when full.
func (r *Ring[T]) Push(value T) {
	r.items[r.next] = value
	r.next = (r.next + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	return r.size
}

// Last returns the i-th most recent element; Last(0) is the newest.
func (r *Ring[T]) Last(i int) (T, bool) {
	if i < 0 || i >= r.size {
		var zero T
		return zero, false
	}
	idx := (r.next - 1 - i + 2*len(r.items)) % len(r.items)
	return r.items[idx], true
}

// ReplaceLast overwrites the most recent element in place.
// It is a no-op on an empty ring.
func (r *Ring[T]) ReplaceLast(value T) bool {
	if r.size == 0 {
		return false
	}
	idx := (r.next - 1 + len(r.items)) % len(r.items)
	r.items[idx] = value
	return true
}

// Reset discards all stored elements.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.next = 0
	r.size = 0
}
