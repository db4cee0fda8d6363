package prefetch

import (
	"context"
	"sync/atomic"
)

// Barrier waits for a fixed number of completions.
//
// Unlike sync.WaitGroup the count is fixed up front, extra Done calls are
// ignored instead of panicking, and Wait can be abandoned through a context.
// A Barrier for zero completions is already satisfied.
type Barrier struct {
	remaining atomic.Int64
	done      chan struct{}
}

// NewBarrier returns a barrier that opens after n calls to Done.
func NewBarrier(n int) *Barrier {
	b := &Barrier{done: make(chan struct{})}
	b.remaining.Store(int64(n))
	if n <= 0 {
		close(b.done)
	}
	return b
}

// Done records one completion.
func (b *Barrier) Done() {
	if b.remaining.Add(-1) == 0 {
		close(b.done)
	}
}

// Remaining returns the number of completions still expected.
func (b *Barrier) Remaining() int {
	return int(max(b.remaining.Load(), 0))
}

// Wait blocks until every completion has been recorded or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
