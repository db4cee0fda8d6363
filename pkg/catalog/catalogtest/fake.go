// Package catalogtest provides a scriptable in-memory catalog for tests.
//
// By default requests complete asynchronously with a small solid image. With
// WithManualCompletion, requests are held until the test completes them,
// which makes in-flight behaviour observable.
package catalogtest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/catalog"
)

// Request records one RequestImage call.
type Request struct {
	ID       catalog.RequestID
	Asset    asset.Asset
	Size     asset.Size
	Fidelity catalog.Fidelity

	done catalog.DoneFunc
}

// Renderer produces the image delivered for a request. Returning nil
// simulates a fetch that yields no image.
type Renderer func(a asset.Asset, size asset.Size) image.Image

// Option configures a Fake.
type Option func(*Fake)

// WithManualCompletion holds every request until Complete, CompleteNext or
// CompleteAll is called.
func WithManualCompletion() Option {
	return func(f *Fake) { f.manual = true }
}

// WithDelay delays automatic completion.
func WithDelay(d time.Duration) Option {
	return func(f *Fake) { f.delay = d }
}

// WithRenderer overrides the delivered image.
func WithRenderer(r Renderer) Option {
	return func(f *Fake) { f.render = r }
}

// WithAssets sets what List returns.
func WithAssets(assets []asset.Asset) Option {
	return func(f *Fake) { f.assets = assets }
}

// WithListError makes List fail.
func WithListError(err error) Option {
	return func(f *Fake) { f.listErr = err }
}

// WithDeliverOnCancel makes Cancel deliver a nil image to the cancelled
// request instead of dropping it.
func WithDeliverOnCancel() Option {
	return func(f *Fake) { f.deliverOnCancel = true }
}

// Fake implements catalog.Catalog and catalog.Lister.
type Fake struct {
	manual          bool
	delay           time.Duration
	render          Renderer
	deliverOnCancel bool
	assets          []asset.Asset
	listErr         error

	mu          sync.Mutex
	seq         int
	pending     map[catalog.RequestID]*Request
	order       []catalog.RequestID
	calls       []Request
	cancelled   []catalog.RequestID
	maxInFlight int
}

var (
	_ catalog.Catalog = (*Fake)(nil)
	_ catalog.Lister  = (*Fake)(nil)
)

// New returns a Fake.
func New(opts ...Option) *Fake {
	f := &Fake{
		render:  func(asset.Asset, asset.Size) image.Image { return Solid(2, 2) },
		pending: make(map[catalog.RequestID]*Request),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RequestImage records the call and schedules delivery.
func (f *Fake) RequestImage(_ context.Context, a asset.Asset, size asset.Size, fidelity catalog.Fidelity, done catalog.DoneFunc) catalog.RequestID {
	f.mu.Lock()
	f.seq++
	id := catalog.RequestID(fmt.Sprintf("req-%d", f.seq))
	req := &Request{ID: id, Asset: a, Size: size, Fidelity: fidelity, done: done}
	f.calls = append(f.calls, *req)
	f.pending[id] = req
	f.order = append(f.order, id)
	if n := len(f.pending); n > f.maxInFlight {
		f.maxInFlight = n
	}
	f.mu.Unlock()

	if !f.manual {
		go func() {
			if f.delay > 0 {
				time.Sleep(f.delay)
			}
			f.deliver(id, f.render(a, size), false)
		}()
	}
	return id
}

// Cancel drops a pending request.
func (f *Fake) Cancel(id catalog.RequestID) {
	f.mu.Lock()
	_, ok := f.pending[id]
	if ok {
		f.cancelled = append(f.cancelled, id)
	}
	f.mu.Unlock()

	if !ok {
		return
	}
	if f.deliverOnCancel {
		f.deliver(id, nil, true)
		return
	}
	f.mu.Lock()
	f.remove(id)
	f.mu.Unlock()
}

// List returns the configured assets.
func (f *Fake) List(ctx context.Context) ([]asset.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]asset.Asset, len(f.assets))
	copy(out, f.assets)
	return out, nil
}

// Complete delivers img to the request id. It reports false when id is not
// pending.
func (f *Fake) Complete(id catalog.RequestID, img image.Image) bool {
	return f.deliver(id, img, false)
}

// CompleteNext delivers the oldest pending request using the renderer.
func (f *Fake) CompleteNext() bool {
	f.mu.Lock()
	if len(f.order) == 0 {
		f.mu.Unlock()
		return false
	}
	req := f.pending[f.order[0]]
	f.mu.Unlock()
	return f.deliver(req.ID, f.render(req.Asset, req.Size), false)
}

// CompleteAll delivers every pending request and returns how many it
// delivered. Requests issued by the callbacks themselves are not included.
func (f *Fake) CompleteAll() int {
	f.mu.Lock()
	ids := append([]catalog.RequestID(nil), f.order...)
	f.mu.Unlock()

	n := 0
	for _, id := range ids {
		f.mu.Lock()
		req, ok := f.pending[id]
		f.mu.Unlock()
		if ok && f.deliver(id, f.render(req.Asset, req.Size), false) {
			n++
		}
	}
	return n
}

func (f *Fake) deliver(id catalog.RequestID, img image.Image, cancelled bool) bool {
	f.mu.Lock()
	req, ok := f.pending[id]
	if ok {
		f.remove(id)
	}
	f.mu.Unlock()

	if !ok {
		return false
	}
	if cancelled {
		img = nil
	}
	if req.done != nil {
		req.done(img)
	}
	return true
}

// remove must be called with mu held.
func (f *Fake) remove(id catalog.RequestID) {
	delete(f.pending, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Calls returns every request made so far.
func (f *Fake) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}

// CallCount returns the number of requests made so far.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// CallsFor returns how many requests were made for asset id at fidelity.
func (f *Fake) CallsFor(id string, fidelity catalog.Fidelity) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Asset.ID == id && c.Fidelity == fidelity {
			n++
		}
	}
	return n
}

// Pending returns the requests not yet delivered, oldest first.
func (f *Fake) Pending() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.pending[id])
	}
	return out
}

// InFlight returns the number of requests not yet delivered.
func (f *Fake) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// MaxInFlight returns the high-water mark of InFlight.
func (f *Fake) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// Cancelled returns every handle passed to Cancel while it was pending.
func (f *Fake) Cancelled() []catalog.RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.RequestID(nil), f.cancelled...)
}

// Solid returns a w x h opaque gray image.
func Solid(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}

// Fill returns a w x h image of color c.
func Fill(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// Assets returns n assets with ids "asset-00000", "asset-00001", ...
func Assets(n, width, height int) []asset.Asset {
	out := make([]asset.Asset, n)
	for i := range out {
		out[i] = asset.Asset{ID: AssetID(i), Width: width, Height: height}
	}
	return out
}

// AssetID returns the id Assets gives to index i.
func AssetID(i int) string { return fmt.Sprintf("asset-%05d", i) }
