package core

import "errors"

// ErrQueueEmpty is returned by Get on an empty queue. The drain loop always
// checks Empty first, so seeing this error means a caller skipped the check.
var ErrQueueEmpty = errors.New("queue empty")

// Queue is a fixed-capacity FIFO ring used to hand buffered samples from a
// producer task to a consumer. A full queue drops new items rather than
// overwriting old ones or blocking.
type Queue[T any] struct {
	name      string
	buf       []T
	head      int // index of the oldest item
	count     int
	overflows uint32
	maxFull   int
	protect   bool
}

// NewQueue creates a named queue holding at most size items
func NewQueue[T any](name string, size int, opts ...Option) *Queue[T] {
	if size < 1 {
		size = 1
	}
	o := buildOptions(opts)
	return &Queue[T]{
		name:    name,
		buf:     make([]T, size),
		protect: o.protect,
	}
}

// Name returns the queue's name
func (q *Queue[T]) Name() string {
	return q.name
}

// Put appends v. It returns false and leaves the contents untouched when
// the queue is full.
func (q *Queue[T]) Put(v T) bool {
	if q.protect {
		state := disableInterrupts()
		defer restoreInterrupts(state)
	}
	if q.count == len(q.buf) {
		q.overflows++
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	if q.count > q.maxFull {
		q.maxFull = q.count
	}
	return true
}

// Get removes and returns the oldest item
func (q *Queue[T]) Get() (T, error) {
	if q.protect {
		state := disableInterrupts()
		defer restoreInterrupts(state)
	}
	var zero T
	if q.count == 0 {
		return zero, ErrQueueEmpty
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, nil
}

// Full reports whether a Put would be dropped
func (q *Queue[T]) Full() bool {
	return q.Len() == len(q.buf)
}

// Empty reports whether a Get would fail
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	if q.protect {
		state := disableInterrupts()
		defer restoreInterrupts(state)
	}
	return q.count
}

// Cap returns the fixed capacity
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// Overflows returns how many items have been dropped since the last Clear
func (q *Queue[T]) Overflows() uint32 {
	return q.overflows
}

// MaxFull returns the high-water mark of the queue
func (q *Queue[T]) MaxFull() int {
	return q.maxFull
}

// Clear empties the queue and resets its counters
func (q *Queue[T]) Clear() {
	if q.protect {
		state := disableInterrupts()
		defer restoreInterrupts(state)
	}
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head = 0
	q.count = 0
	q.overflows = 0
	q.maxFull = 0
}

// String describes the queue for diagnostic dumps
func (q *Queue[T]) String() string {
	return "Queue " + q.name + " " + itoa(q.Len()) + "/" + itoa(len(q.buf)) +
		" max " + itoa(q.maxFull) + " dropped " + utoa(q.overflows)
}
