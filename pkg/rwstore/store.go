// Package rwstore provides a single-writer/many-readers guard around a value.
//
// Every shared map in the engine lives behind a Store. Reads run
// concurrently with each other. Writes are queued and applied one at a time,
// in submission order, by a drain goroutine holding the exclusive lock; the
// caller of Write returns immediately.
//
// A read observes every write submitted before it. This is what lets the
// image cache record an in-flight request with a fire-and-forget Write and
// have the very next dedup check see it.
//
// Store operations must not be nested: calling any method of a Store from
// inside a function passed to the same Store deadlocks. That is a programming
// error and is not detected at runtime.
package rwstore

import (
	"sync"
)

// Store guards a value of type T.
//
// Functions passed to Read receive a pointer to the guarded value and must
// not mutate it. Functions passed to Write and Exclusive may.
type Store[T any] struct {
	rw   sync.RWMutex
	data T

	qmu       sync.Mutex
	applied   *sync.Cond // signalled on qmu after each write
	queue     []func(*T)
	draining  bool
	submitted uint64
	done      uint64
}

// New returns a Store guarding initial.
func New[T any](initial T) *Store[T] {
	s := &Store[T]{data: initial}
	s.applied = sync.NewCond(&s.qmu)
	return s
}

// Read runs fn with shared access, after every write submitted before the
// call has been applied.
func (s *Store[T]) Read(fn func(*T)) {
	s.Sync()
	s.rw.RLock()
	defer s.rw.RUnlock()
	fn(&s.data)
}

// Read runs fn with shared access on s and returns its result.
func Read[T, R any](s *Store[T], fn func(*T) R) R {
	var r R
	s.Read(func(v *T) { r = fn(v) })
	return r
}

// Write schedules fn to run with exclusive access and returns immediately.
// Writes are applied in the order they were submitted.
func (s *Store[T]) Write(fn func(*T)) {
	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	s.submitted++
	if !s.draining {
		s.draining = true
		go s.drain()
	}
	s.qmu.Unlock()
}

// Exclusive runs fn with exclusive access and waits for it to return. It is
// ordered after every write submitted before the call. Use it when a
// check-then-act must be atomic.
func (s *Store[T]) Exclusive(fn func(*T)) {
	s.Sync()
	s.rw.Lock()
	defer s.rw.Unlock()
	fn(&s.data)
}

// Exclusive runs fn with exclusive access on s and returns its result.
func Exclusive[T, R any](s *Store[T], fn func(*T) R) R {
	var r R
	s.Exclusive(func(v *T) { r = fn(v) })
	return r
}

// Sync blocks until every write submitted before the call has been applied.
func (s *Store[T]) Sync() {
	s.qmu.Lock()
	target := s.submitted
	for s.done < target {
		s.applied.Wait()
	}
	s.qmu.Unlock()
}

// Pending returns the number of submitted writes not yet applied.
func (s *Store[T]) Pending() int {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return int(s.submitted - s.done)
}

// drain applies queued writes until the queue is empty, then exits. A new
// drain goroutine is started by the next Write.
func (s *Store[T]) drain() {
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.qmu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		s.rw.Lock()
		fn(&s.data)
		s.rw.Unlock()

		s.qmu.Lock()
		s.done++
		s.applied.Broadcast()
		s.qmu.Unlock()
	}
}
