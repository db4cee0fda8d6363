package fs

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/catalog"
)

func writePNG(t *testing.T, path string, w, h int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func writeJPEG(t *testing.T, path string, w, h int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewGray(image.Rect(0, 0, w, h)), nil))
	require.NoError(t, f.Close())
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newCatalog(t *testing.T, cfg Config, m Metrics) *Catalog {
	t.Helper()
	c, err := New(cfg, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// requestSync issues a request and waits for its delivery.
func requestSync(t *testing.T, c *Catalog, a asset.Asset, size asset.Size, f catalog.Fidelity) image.Image {
	t.Helper()
	got := make(chan image.Image, 1)
	id := c.RequestImage(context.Background(), a, size, f, func(img image.Image) { got <- img })
	require.NotEmpty(t, id)

	select {
	case img := <-got:
		return img
	case <-time.After(5 * time.Second):
		t.Fatal("request was not delivered")
		return nil
	}
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(Config{Root: filepath.Join(t.TempDir(), "missing")}, nil)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestNew_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.png")
	writeFile(t, path, "x")
	_, err := New(Config{Root: path}, nil)
	assert.Error(t, err)
}

func TestNew_AppliesDefaults(t *testing.T) {
	c := newCatalog(t, Config{Root: t.TempDir()}, nil)
	assert.Equal(t, DefaultWorkers, c.cfg.Workers)
	assert.Equal(t, DefaultDecodeTimeout, c.cfg.DecodeTimeout)
	assert.Equal(t, DefaultWatchDebounce, c.cfg.WatchDebounce)
	assert.True(t, filepath.IsAbs(c.Root()))
}

func TestList_NewestFirst(t *testing.T) {
	root := t.TempDir()
	now := time.Now().Truncate(time.Second)

	writePNG(t, filepath.Join(root, "a.png"), 40, 30, now.Add(-2*time.Hour))
	writePNG(t, filepath.Join(root, "b.png"), 30, 40, now.Add(-time.Hour))
	writeJPEG(t, filepath.Join(root, "2024", "c.jpg"), 64, 48, now)
	writePNG(t, filepath.Join(root, "tie-b.png"), 1, 1, now.Add(-3*time.Hour))
	writePNG(t, filepath.Join(root, "tie-a.png"), 1, 1, now.Add(-3*time.Hour))

	// Skipped entries.
	writeFile(t, filepath.Join(root, "notes.txt"), "hello")
	writeFile(t, filepath.Join(root, "broken.png"), "not a png")
	writePNG(t, filepath.Join(root, ".hidden.png"), 1, 1, now)
	writePNG(t, filepath.Join(root, ".thumbs", "x.png"), 1, 1, now)

	c := newCatalog(t, Config{Root: root}, nil)
	assets, err := c.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []asset.Asset{
		{ID: "2024/c.jpg", Width: 64, Height: 48},
		{ID: "b.png", Width: 30, Height: 40},
		{ID: "a.png", Width: 40, Height: 30},
		{ID: "tie-a.png", Width: 1, Height: 1},
		{ID: "tie-b.png", Width: 1, Height: 1},
	}, assets)
}

func TestList_SkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "small.png"), 2, 2, time.Time{})
	writePNG(t, filepath.Join(root, "big.png"), 200, 200, time.Time{})

	info, err := os.Stat(filepath.Join(root, "small.png"))
	require.NoError(t, err)

	m := &recordingMetrics{}
	c := newCatalog(t, Config{Root: root, MaxFileSize: info.Size()}, m)
	assets, err := c.List(context.Background())
	require.NoError(t, err)

	require.Len(t, assets, 1)
	assert.Equal(t, "small.png", assets[0].ID)
	assert.Equal(t, 1, m.scanned)
	assert.Equal(t, 1, m.skipped)
}

func TestList_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 2, 2, time.Time{})

	c := newCatalog(t, Config{Root: root}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestImage_ScalesDown(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 400, 300, time.Time{})
	c := newCatalog(t, Config{Root: root}, nil)
	a := asset.Asset{ID: "a.png", Width: 400, Height: 300}

	for _, f := range []catalog.Fidelity{catalog.FidelityLow, catalog.FidelityHigh} {
		img := requestSync(t, c, a, asset.Size{Width: 40, Height: 30}, f)
		require.NotNil(t, img, f.String())
		assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds(), f.String())
	}
	assert.Equal(t, 0, c.Pending())
}

func TestRequestImage_NeverScalesUp(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 20, 10, time.Time{})
	c := newCatalog(t, Config{Root: root}, nil)

	img := requestSync(t, c, asset.Asset{ID: "a.png"}, asset.Size{Width: 200, Height: 100}, catalog.FidelityHigh)
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())

	img = requestSync(t, c, asset.Asset{ID: "a.png"}, asset.Size{}, catalog.FidelityHigh)
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
}

func TestRequestImage_FailuresDeliverNil(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken.png"), "garbage")
	writePNG(t, filepath.Join(root, "big.png"), 100, 100, time.Time{})

	m := &recordingMetrics{}
	c := newCatalog(t, Config{Root: root, MaxFileSize: 64}, m)
	size := asset.Size{Width: 10, Height: 10}

	tests := []struct {
		name string
		id   string
	}{
		{"missing file", "missing.png"},
		{"undecodable", "broken.png"},
		{"too large", "big.png"},
		{"escapes root", "../outside.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, requestSync(t, c, asset.Asset{ID: tt.id}, size, catalog.FidelityLow))
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, len(tests), m.decodes)
	assert.Equal(t, len(tests), m.failures)
}

func TestCancel_SuppressesDelivery(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 4, 4, time.Time{})
	c := newCatalog(t, Config{Root: root, Workers: 1}, nil)

	// Occupy the only worker so the request stays queued.
	require.NoError(t, c.sem.Acquire(context.Background(), 1))

	var calls int
	var mu sync.Mutex
	id := c.RequestImage(context.Background(), asset.Asset{ID: "a.png"}, asset.Size{}, catalog.FidelityLow, func(image.Image) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	assert.Equal(t, 1, c.Pending())

	c.Cancel(id)
	c.Cancel(id)
	c.Cancel("unknown")
	c.sem.Release(1)
	c.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, c.Pending())
}

func TestRequestImage_CallerContextCancelled(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 4, 4, time.Time{})
	c := newCatalog(t, Config{Root: root, Workers: 1}, nil)
	require.NoError(t, c.sem.Acquire(context.Background(), 1))
	defer c.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan image.Image, 1)
	c.RequestImage(ctx, asset.Asset{ID: "a.png"}, asset.Size{}, catalog.FidelityLow, func(img image.Image) { got <- img })
	cancel()

	select {
	case img := <-got:
		assert.Nil(t, img)
	case <-time.After(5 * time.Second):
		t.Fatal("request was not delivered")
	}
}

func TestClose(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 4, 4, time.Time{})
	c, err := New(Config{Root: root, Workers: 1}, nil)
	require.NoError(t, err)

	// Queued behind a busy worker; Close must abort it with a nil delivery.
	require.NoError(t, c.sem.Acquire(context.Background(), 1))
	got := make(chan image.Image, 1)
	c.RequestImage(context.Background(), asset.Asset{ID: "a.png"}, asset.Size{}, catalog.FidelityLow, func(img image.Image) { got <- img })

	require.NoError(t, c.Close())
	assert.Nil(t, <-got)
	assert.ErrorIs(t, c.Close(), catalog.ErrClosed)
	c.sem.Release(1)

	// Requests after Close deliver nil.
	after := make(chan image.Image, 1)
	c.RequestImage(context.Background(), asset.Asset{ID: "a.png"}, asset.Size{}, catalog.FidelityLow, func(img image.Image) { after <- img })
	select {
	case img := <-after:
		assert.Nil(t, img)
	case <-time.After(5 * time.Second):
		t.Fatal("request after close was not delivered")
	}
}

func TestStatus(t *testing.T) {
	root := t.TempDir()
	c := newCatalog(t, Config{Root: root}, nil)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.AuthAuthorized, status)

	require.NoError(t, os.Remove(root))
	status, err = c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.AuthRestricted, status)
}

func TestWatch_SignalsChanges(t *testing.T) {
	root := t.TempDir()
	c := newCatalog(t, Config{Root: root, WatchDebounce: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{}, 16)
	result := make(chan error, 1)
	go func() {
		result <- c.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register the root.
	time.Sleep(100 * time.Millisecond)
	writePNG(t, filepath.Join(root, "new.png"), 2, 2, time.Time{})

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change signalled")
	}

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return")
	}
}

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.png", true},
		{"a.PNG", true},
		{"a.jpeg", true},
		{"a.webp", true},
		{"a.tiff", true},
		{"a.bmp", true},
		{"a.txt", false},
		{"png", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isImageFile(tt.name), tt.name)
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	decodes  int
	failures int
	scanned  int
	skipped  int
	pending  int
}

func (m *recordingMetrics) ObserveDecode(_ catalog.Fidelity, _ int64, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodes++
	if err != nil {
		m.failures++
	}
}

func (m *recordingMetrics) ObserveScan(assets, skipped int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanned = assets
	m.skipped = skipped
}

func (m *recordingMetrics) SetPending(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = n
}
