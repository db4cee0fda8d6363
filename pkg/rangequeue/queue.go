// Package rangequeue holds the backlog of index ranges waiting for the
// prefetch pipeline.
package rangequeue

import (
	"fmt"

	"github.com/marmos91/gridcache/pkg/rwstore"
)

// Range is a half-open span of asset indices [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices covered by r. Inverted ranges are empty.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether r covers no indices.
func (r Range) Empty() bool { return r.Len() == 0 }

// Contains reports whether i lies in r.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

func (r Range) String() string { return fmt.Sprintf("[%d, %d)", r.Start, r.End) }

// Queue is a FIFO of pending ranges.
//
// Enqueue is safe from any goroutine. Dequeue peeks under shared access and
// then removes the head with a queued write, so at most one goroutine may
// dequeue at a time. The prefetch pipeline guarantees that by running a
// single work loop.
type Queue struct {
	store *rwstore.Store[[]Range]
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{store: rwstore.New[[]Range](nil)}
}

// Enqueue appends r to the tail. Empty ranges are dropped and Enqueue
// reports false.
func (q *Queue) Enqueue(r Range) bool {
	if r.Empty() {
		return false
	}
	q.store.Write(func(rs *[]Range) { *rs = append(*rs, r) })
	return true
}

// Dequeue removes and returns the head. It reports false when the queue is
// empty.
func (q *Queue) Dequeue() (Range, bool) {
	head := rwstore.Read(q.store, func(rs *[]Range) peek {
		if len(*rs) == 0 {
			return peek{}
		}
		return peek{r: (*rs)[0], ok: true}
	})
	if !head.ok {
		return Range{}, false
	}

	q.store.Write(func(rs *[]Range) {
		if len(*rs) == 0 {
			return
		}
		*rs = (*rs)[1:]
	})
	return head.r, true
}

type peek struct {
	r  Range
	ok bool
}

// Len returns the number of queued ranges.
func (q *Queue) Len() int {
	return rwstore.Read(q.store, func(rs *[]Range) int { return len(*rs) })
}

// Clear drops every queued range.
func (q *Queue) Clear() {
	q.store.Write(func(rs *[]Range) { *rs = nil })
}
