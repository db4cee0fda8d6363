package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/gridcache/pkg/grid"
	"github.com/marmos91/gridcache/pkg/imagecache"
	"github.com/marmos91/gridcache/pkg/metrics"
	"github.com/marmos91/gridcache/pkg/prefetch"
)

type stubStats struct {
	stats grid.Stats
	err   error
}

func (s stubStats) Stats() (grid.Stats, error) { return s.stats, s.err }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp Response
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	}
	return w, resp
}

func TestLiveness(t *testing.T) {
	w, resp := get(t, NewRouter(nil), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gridcache", data["service"])
}

func TestReadiness(t *testing.T) {
	t.Run("NoSource", func(t *testing.T) {
		w, resp := get(t, NewRouter(nil), "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", resp.Status)
	})

	t.Run("NoSession", func(t *testing.T) {
		w, resp := get(t, NewRouter(stubStats{err: grid.ErrNoSession}), "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, grid.ErrNoSession.Error(), resp.Error)
	})

	t.Run("Loaded", func(t *testing.T) {
		src := stubStats{stats: grid.Stats{
			SessionID: "s-1",
			Assets:    3000,
			Cache: imagecache.Stats{
				Thumbnail: imagecache.TierStats{Cached: 1000},
				HighRes:   imagecache.TierStats{Cached: 12},
			},
			Pipeline: prefetch.Stats{State: prefetch.StateRunning},
		}}
		w, resp := get(t, NewRouter(src), "/health/ready")

		assert.Equal(t, http.StatusOK, w.Code)
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "s-1", data["session"])
		assert.EqualValues(t, 3000, data["assets"])
		assert.Equal(t, "running", data["pipeline"])
		assert.EqualValues(t, 1000, data["thumbnails"])
		assert.EqualValues(t, 12, data["highres"])
	})
}

func TestMetrics(t *testing.T) {
	h := NewRouter(nil)

	metrics.Disable()
	w, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)

	metrics.InitRegistry()
	t.Cleanup(metrics.Disable)

	w, _ = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRootRedirects(t *testing.T) {
	w, _ := get(t, NewRouter(nil), "/")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/health", w.Header().Get("Location"))
}

func TestServer_StartStop(t *testing.T) {
	s := New(Config{Port: 0}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", s.Addr().(*net.TCPAddr).Port))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(DefaultShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}

	// A second Stop is a no-op.
	assert.NoError(t, s.Stop(context.Background()))
}
