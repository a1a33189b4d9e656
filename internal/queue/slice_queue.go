package queue

// sliceQueue implements the Queue interface using a slice.
//
// A bounded sliceQueue drops its head when an item is enqueued at capacity.
// It is not safe for concurrent use.
type sliceQueue[T any] struct {
	items []T
	limit int
}

var _ Queue[int] = (*sliceQueue[int])(nil)

// NewSliceQueue creates an unbounded queue.
func NewSliceQueue[T any](prealloc int) Queue[T] {
	return &sliceQueue[T]{items: make([]T, 0, prealloc)}
}

// NewBoundedQueue creates a queue holding at most limit items, keeping the
// most recent ones. limit must be positive.
func NewBoundedQueue[T any](limit int) Queue[T] {
	if limit < 1 {
		limit = 1
	}

	return &sliceQueue[T]{items: make([]T, 0, limit), limit: limit}
}

// Enqueue adds an item to the tail of the queue.
func (q *sliceQueue[T]) Enqueue(item T) {
	if q.limit > 0 && len(q.items) == q.limit {
		var zero T
		q.items[0] = zero
		q.items = append(q.items[:0], q.items[1:]...)
	}
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
func (q *sliceQueue[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *sliceQueue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	return q.items[0], true
}

// Items returns a copy of the queued items, head first.
func (q *sliceQueue[T]) Items() []T {
	return append([]T(nil), q.items...)
}

// Reset resets the queue to an empty state.
func (q *sliceQueue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0] // Reslice to 0 length to reuse the underlying array
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *sliceQueue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Length returns the number of items in the queue.
func (q *sliceQueue[T]) Length() int {
	return len(q.items)
}
