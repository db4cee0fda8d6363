package grid

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/catalog"
	"github.com/marmos91/gridcache/pkg/catalog/catalogtest"
	"github.com/marmos91/gridcache/pkg/imagecache"
	"github.com/marmos91/gridcache/pkg/window"
)

type recordingPresenter struct {
	mu       sync.Mutex
	reloads  int
	relayout int
	alerts   []string
}

func (p *recordingPresenter) ReloadAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
}

func (p *recordingPresenter) Relayout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.relayout++
}

func (p *recordingPresenter) ShowAlert(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, msg)
}

type fixture struct {
	fake      *catalogtest.Fake
	assets    *asset.List
	presenter *recordingPresenter
	c         *Controller
}

func newFixture(t *testing.T, n int, opts []catalogtest.Option, copts ...Option) *fixture {
	t.Helper()
	opts = append([]catalogtest.Option{catalogtest.WithAssets(catalogtest.Assets(n, 400, 300))}, opts...)
	fake := catalogtest.New(opts...)
	assets := asset.NewList(nil)
	presenter := &recordingPresenter{}
	c := New(context.Background(), fake, fake, assets, presenter, copts...)
	t.Cleanup(func() { _ = c.Close() })
	return &fixture{fake: fake, assets: assets, presenter: presenter, c: c}
}

func (f *fixture) load(t *testing.T) *Session {
	t.Helper()
	require.NoError(t, f.c.LoadLibrary(context.Background()))
	s, err := f.c.Session()
	require.NoError(t, err)
	return s
}

func span(first, last int) []int {
	out := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		out = append(out, i)
	}
	return out
}

func at(t *testing.T, l *asset.List, i int) asset.Asset {
	t.Helper()
	a, ok := l.At(i)
	require.True(t, ok)
	return a
}

func TestLoadLibrary(t *testing.T) {
	f := newFixture(t, 25, nil)

	s := f.load(t)

	assert.Equal(t, 25, f.assets.Count())
	assert.Equal(t, 1, f.presenter.reloads)
	assert.NotEmpty(t, s.ID)
	assert.Empty(t, f.presenter.alerts)
}

func TestLoadLibrary_Denied(t *testing.T) {
	auth := catalog.AuthorizerFunc(func(context.Context) (catalog.AuthStatus, error) { return catalog.AuthDenied, nil })
	f := newFixture(t, 25, nil, WithAuthorizer(auth))

	err := f.c.LoadLibrary(context.Background())

	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, []string{AuthDeniedMessage}, f.presenter.alerts)
	assert.Equal(t, 0, f.presenter.reloads)
	assert.Equal(t, 0, f.assets.Count())
	_, err = f.c.Session()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadLibrary_AuthorizerError(t *testing.T) {
	boom := errors.New("boom")
	auth := catalog.AuthorizerFunc(func(context.Context) (catalog.AuthStatus, error) { return catalog.AuthNotDetermined, boom })
	f := newFixture(t, 5, nil, WithAuthorizer(auth))

	err := f.c.LoadLibrary(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.presenter.alerts)
}

func TestLoadLibrary_ListError(t *testing.T) {
	f := newFixture(t, 5, []catalogtest.Option{catalogtest.WithListError(catalog.ErrNotFound)})

	err := f.c.LoadLibrary(context.Background())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, 0, f.presenter.reloads)
}

func TestOperationsWithoutSession(t *testing.T) {
	f := newFixture(t, 5, nil)

	assert.ErrorIs(t, f.c.FetchNewImages(span(0, 2), 3), ErrNoSession)
	assert.ErrorIs(t, f.c.RemoveImagesFromCache(span(0, 2), 3), ErrNoSession)
	assert.ErrorIs(t, f.c.ChangeSegment(), ErrNoSession)
	assert.ErrorIs(t, f.c.SetImageInCell(context.Background(), 0, asset.Size{Width: 1, Height: 1}, nil), ErrNoSession)
	_, err := f.c.Stats()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestReload_BuildsFreshSession(t *testing.T) {
	f := newFixture(t, 10, nil)

	first := f.load(t)
	require.NoError(t, f.c.Reload(context.Background()))
	second, err := f.c.Session()
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotSame(t, first.Cache, second.Cache)
	assert.ErrorIs(t, first.Cache.Close(), imagecache.ErrClosed)
	assert.Equal(t, 2, f.presenter.reloads)
}

func TestFetchNewImages_ForwardScroll(t *testing.T) {
	f := newFixture(t, 3000, []catalogtest.Option{catalogtest.WithDelay(time.Millisecond)})
	s := f.load(t)

	require.NoError(t, f.c.FetchNewImages(span(500, 520), 521))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.c.WaitIdle(ctx))

	for i := 521; i < 1521; i++ {
		_, ok := s.Cache.Thumbnail(catalogtest.AssetID(i))
		require.True(t, ok, "index %d", i)
	}
	assert.Equal(t, 1000, f.fake.CallCount())
	assert.LessOrEqual(t, f.fake.MaxInFlight(), 50)

	st, err := f.c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1000, st.Cache.Thumbnail.Cached)
	assert.Equal(t, uint64(1), st.Pipeline.Ranges)
}

func TestFetchNewImages_InsideVisibleIsNoop(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.load(t)

	require.NoError(t, f.c.FetchNewImages(span(10, 20), 15))
	require.NoError(t, f.c.WaitIdle(context.Background()))
	assert.Equal(t, 0, f.fake.CallCount())
}

func TestRemoveImagesFromCache_Forward(t *testing.T) {
	f := newFixture(t, 5000, []catalogtest.Option{catalogtest.WithManualCompletion()})
	s := f.load(t)
	ctx := context.Background()
	size := asset.Size{Width: 10, Height: 10}

	s.Cache.FetchThumbnail(ctx, at(t, f.assets, 2200), nil)
	s.Cache.FetchHighRes(ctx, at(t, f.assets, 1220), size, nil)
	s.Cache.FetchThumbnail(ctx, at(t, f.assets, 2201), nil)
	f.fake.CompleteAll()

	// High-res for the disappearing cell is still in flight.
	s.Cache.FetchHighRes(ctx, at(t, f.assets, 1200), size, nil)

	require.NoError(t, f.c.RemoveImagesFromCache(span(1180, 1199), 1200))

	_, ok := s.Cache.Thumbnail(catalogtest.AssetID(2200))
	assert.False(t, ok)
	_, ok = s.Cache.HighRes(catalogtest.AssetID(1220))
	assert.False(t, ok)
	_, ok = s.Cache.Thumbnail(catalogtest.AssetID(2201))
	assert.True(t, ok)

	assert.False(t, s.Cache.InFlight(imagecache.TierHighRes, catalogtest.AssetID(1200)))
	assert.Len(t, f.fake.Cancelled(), 1)
}

func TestRemoveImagesFromCache_BackwardNearStart(t *testing.T) {
	f := newFixture(t, 5000, []catalogtest.Option{catalogtest.WithManualCompletion()})
	s := f.load(t)
	ctx := context.Background()

	s.Cache.FetchHighRes(ctx, at(t, f.assets, 75), asset.Size{Width: 10, Height: 10}, nil)
	s.Cache.FetchThumbnail(ctx, at(t, f.assets, 0), nil)
	f.fake.CompleteAll()

	require.NoError(t, f.c.RemoveImagesFromCache(span(100, 120), 95))

	_, ok := s.Cache.HighRes(catalogtest.AssetID(75))
	assert.False(t, ok)
	_, ok = s.Cache.Thumbnail(catalogtest.AssetID(0))
	assert.True(t, ok, "thumbnail offset -905 is out of bounds")
	assert.Equal(t, uint64(0), s.Cache.Stats().Thumbnail.Evicted)
}

func TestRemoveImagesFromCache_InsideVisibleStillCancels(t *testing.T) {
	f := newFixture(t, 100, []catalogtest.Option{catalogtest.WithManualCompletion()})
	s := f.load(t)

	s.Cache.FetchHighRes(context.Background(), at(t, f.assets, 15), asset.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, f.c.RemoveImagesFromCache(span(10, 20), 15))

	assert.Len(t, f.fake.Cancelled(), 1)
	s.Cache.Sync()
	st := s.Cache.Stats()
	assert.Equal(t, uint64(0), st.Thumbnail.Evicted+st.HighRes.Evicted)
}

func TestRemoveImagesFromCache_OutOfRangeIgnored(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.load(t)
	assert.NoError(t, f.c.RemoveImagesFromCache(span(0, 5), 50))
	assert.NoError(t, f.c.RemoveImagesFromCache(span(0, 5), -1))
}

type delivery struct {
	id  string
	img image.Image
}

func collect() (*[]delivery, *sync.Mutex, func(string, image.Image)) {
	var (
		mu  sync.Mutex
		out []delivery
	)
	return &out, &mu, func(id string, img image.Image) {
		mu.Lock()
		defer mu.Unlock()
		out = append(out, delivery{id, img})
	}
}

func TestSetImageInCell_NothingCached(t *testing.T) {
	f := newFixture(t, 10, []catalogtest.Option{catalogtest.WithManualCompletion()})
	f.load(t)

	got, mu, deliver := collect()
	cell := asset.Size{Width: 150, Height: 150}
	require.NoError(t, f.c.SetImageInCell(context.Background(), 3, cell, deliver))

	assert.Empty(t, *got)
	calls := f.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, catalog.FidelityHigh, calls[0].Fidelity)
	assert.Equal(t, window.RenderSize(asset.Size{Width: 400, Height: 300}, cell), calls[0].Size)
	assert.Equal(t, asset.Size{Width: 200, Height: 150}, calls[0].Size)

	f.fake.CompleteAll()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *got, 1)
	assert.Equal(t, catalogtest.AssetID(3), (*got)[0].id)
}

func TestSetImageInCell_ThumbnailPlaceholderThenHighRes(t *testing.T) {
	f := newFixture(t, 10, []catalogtest.Option{catalogtest.WithManualCompletion()})
	s := f.load(t)

	s.Cache.FetchThumbnail(context.Background(), at(t, f.assets, 3), nil)
	f.fake.CompleteAll()
	thumb, _ := s.Cache.Thumbnail(catalogtest.AssetID(3))

	got, mu, deliver := collect()
	require.NoError(t, f.c.SetImageInCell(context.Background(), 3, asset.Size{Width: 100, Height: 100}, deliver))

	mu.Lock()
	require.Len(t, *got, 1)
	assert.Same(t, thumb, (*got)[0].img)
	mu.Unlock()

	high := catalogtest.Solid(8, 8)
	pending := f.fake.Pending()
	require.Len(t, pending, 1)
	f.fake.Complete(pending[0].ID, high)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *got, 2)
	assert.Same(t, high, (*got)[1].img)
}

func TestSetImageInCell_HighResCached(t *testing.T) {
	f := newFixture(t, 10, []catalogtest.Option{catalogtest.WithManualCompletion()})
	s := f.load(t)

	s.Cache.FetchHighRes(context.Background(), at(t, f.assets, 3), asset.Size{Width: 1, Height: 1}, nil)
	f.fake.CompleteAll()

	got, _, deliver := collect()
	require.NoError(t, f.c.SetImageInCell(context.Background(), 3, asset.Size{Width: 100, Height: 100}, deliver))

	assert.Len(t, *got, 1)
	assert.Equal(t, 1, f.fake.CallCount())
}

func TestSetImageInCell_EmptyResultNotDelivered(t *testing.T) {
	f := newFixture(t, 10, []catalogtest.Option{
		catalogtest.WithManualCompletion(),
		catalogtest.WithRenderer(func(asset.Asset, asset.Size) image.Image { return nil }),
	})
	s := f.load(t)

	got, _, deliver := collect()
	require.NoError(t, f.c.SetImageInCell(context.Background(), 3, asset.Size{Width: 100, Height: 100}, deliver))
	f.fake.CompleteAll()

	assert.Empty(t, *got)
	assert.False(t, s.Cache.InFlight(imagecache.TierHighRes, catalogtest.AssetID(3)))
}

func TestSetImageInCell_OutOfRangeIgnored(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.load(t)
	assert.NoError(t, f.c.SetImageInCell(context.Background(), 10, asset.Size{Width: 1, Height: 1}, nil))
	assert.Equal(t, 0, f.fake.CallCount())
}

func TestChangeSegment(t *testing.T) {
	f := newFixture(t, 30, []catalogtest.Option{catalogtest.WithManualCompletion()})
	s := f.load(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		a := at(t, f.assets, i)
		s.Cache.FetchThumbnail(ctx, a, nil)
		s.Cache.FetchHighRes(ctx, a, asset.Size{Width: 5, Height: 5}, nil)
	}
	f.fake.CompleteAll()

	require.NoError(t, f.c.ChangeSegment())

	st, err := f.c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Cache.HighRes.Cached)
	assert.Equal(t, 30, st.Cache.Thumbnail.Cached)
	assert.Equal(t, 1, f.presenter.relayout)
}

func TestWithConfig_Thresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window.PrefetchWindow = 10
	f := newFixture(t, 100, nil, WithConfig(cfg))
	f.load(t)

	require.NoError(t, f.c.FetchNewImages(span(0, 9), 10))
	require.NoError(t, f.c.WaitIdle(context.Background()))
	assert.Equal(t, 10, f.fake.CallCount())
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	target := &orderPresenter{}
	d := NewDispatcher(target)

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			d.ReloadAll()
		} else {
			d.Relayout()
		}
	}
	d.ShowAlert("hello")
	d.Close()
	d.Close()

	// Calls after Close are dropped.
	d.ReloadAll()

	require.Len(t, target.calls, 101)
	for i := 0; i < 100; i++ {
		want := "reload"
		if i%2 == 1 {
			want = "relayout"
		}
		assert.Equal(t, want, target.calls[i])
	}
	assert.Equal(t, "alert:hello", target.calls[100])
}

type orderPresenter struct {
	calls []string
}

func (p *orderPresenter) ReloadAll()           { p.calls = append(p.calls, "reload") }
func (p *orderPresenter) Relayout()            { p.calls = append(p.calls, "relayout") }
func (p *orderPresenter) ShowAlert(msg string) { p.calls = append(p.calls, "alert:"+msg) }
