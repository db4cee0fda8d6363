package grid

import (
	"sync"
)

// AuthDeniedMessage is shown when the library cannot be read.
const AuthDeniedMessage = "Please allow to read all photos, please go to setting to allow."

// Presenter receives fire-and-forget notifications for the presentation
// layer. The controller calls it from whatever goroutine it happens to be
// on; wrap it with NewDispatcher when the presentation layer needs calls on
// a single goroutine.
type Presenter interface {
	// ReloadAll redraws every cell after the asset list changed.
	ReloadAll()

	// Relayout recomputes the layout after a segment change.
	Relayout()

	// ShowAlert surfaces a user-facing message.
	ShowAlert(msg string)
}

// Dispatcher delivers Presenter calls, in order, on one goroutine.
type Dispatcher struct {
	target Presenter

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

var _ Presenter = (*Dispatcher)(nil)

// NewDispatcher starts a dispatcher in front of target.
func NewDispatcher(target Presenter) *Dispatcher {
	d := &Dispatcher{target: target, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *Dispatcher) ReloadAll()           { d.post(d.target.ReloadAll) }
func (d *Dispatcher) Relayout()            { d.post(d.target.Relayout) }
func (d *Dispatcher) ShowAlert(msg string) { d.post(func() { d.target.ShowAlert(msg) }) }

func (d *Dispatcher) post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}

// Close delivers what is already queued, then stops the dispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.done
}
