package market

// Ring is a fixed-capacity circular buffer. Pushing onto a full ring evicts
// the oldest element; its length never exceeds its capacity.
type Ring[T any] struct {
	data  []T
	index int // next write position
	size  int
}

// NewRing creates a ring holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the ring is full. It
// reports whether an element was evicted.
func (r *Ring[T]) Push(v T) bool {
	evicted := r.size == len(r.data)
	r.data[r.index] = v
	r.index = (r.index + 1) % len(r.data)
	if !evicted {
		r.size++
	}
	return evicted
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Items returns a copy of all elements, oldest first.
func (r *Ring[T]) Items() []T {
	return r.Latest(r.size)
}

// Latest returns a copy of the n most recent elements, oldest first.
func (r *Ring[T]) Latest(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := (r.index - n + len(r.data)) % len(r.data)
	for i := 0; i < n; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// Drain returns all elements, oldest first, and empties the ring.
func (r *Ring[T]) Drain() []T {
	out := r.Items()
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.index, r.size = 0, 0
	return out
}
