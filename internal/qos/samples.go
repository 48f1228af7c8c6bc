package qos

import "time"

type sample[T any] struct {
	at    time.Time
	value T
}

// ring is a fixed-capacity FIFO of time-stamped samples. Pushing into a full
// ring overwrites the oldest sample. Samples must be pushed in non-decreasing
// time order.
type ring[T any] struct {
	buf  []sample[T]
	head int // index of the oldest sample
	size int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{buf: make([]sample[T], capacity)}
}

func (r *ring[T]) push(at time.Time, v T) {
	idx := (r.head + r.size) % len(r.buf)
	r.buf[idx] = sample[T]{at: at, value: v}

	if r.size < len(r.buf) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring[T]) len() int {
	return r.size
}

// get returns the i-th sample counting from the oldest
func (r *ring[T]) get(i int) sample[T] {
	return r.buf[(r.head+i)%len(r.buf)]
}

// since returns the values recorded at or after t, oldest first.
func (r *ring[T]) since(t time.Time) []T {
	first := r.size
	for first > 0 && !r.get(first-1).at.Before(t) {
		first--
	}

	out := make([]T, 0, r.size-first)
	for i := first; i < r.size; i++ {
		out = append(out, r.get(i).value)
	}
	return out
}

// pruneBefore drops samples older than t and returns how many were dropped.
func (r *ring[T]) pruneBefore(t time.Time) int {
	dropped := 0
	for r.size > 0 && r.get(0).at.Before(t) {
		r.buf[r.head] = sample[T]{}
		r.head = (r.head + 1) % len(r.buf)
		r.size--
		dropped++
	}
	return dropped
}
