package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/gridcache/pkg/catalog"
	"github.com/marmos91/gridcache/pkg/imagecache"
	"github.com/marmos91/gridcache/pkg/metrics"
	"github.com/marmos91/gridcache/pkg/prefetch"
)

func enable(t *testing.T) {
	t.Helper()
	metrics.InitRegistry()
	t.Cleanup(metrics.Disable)
}

func TestConstructorsReturnNilWhenDisabled(t *testing.T) {
	metrics.Disable()

	assert.Nil(t, NewImageCacheMetrics())
	assert.Nil(t, NewPipelineMetrics())
	assert.Nil(t, NewCatalogMetrics())
	assert.Nil(t, metrics.NewImageCacheMetrics())
	assert.Nil(t, metrics.NewPipelineMetrics())
	assert.Nil(t, metrics.NewCatalogMetrics())
}

func TestConstructorsRegisteredOnInit(t *testing.T) {
	enable(t)

	assert.NotNil(t, metrics.NewImageCacheMetrics())
	assert.NotNil(t, metrics.NewPipelineMetrics())
	assert.NotNil(t, metrics.NewCatalogMetrics())
}

func TestImageCacheMetrics(t *testing.T) {
	enable(t)
	m := NewImageCacheMetrics().(*imageCacheMetrics)

	m.RecordLookup(imagecache.TierThumbnail, imagecache.LookupMiss)
	m.RecordLookup(imagecache.TierThumbnail, imagecache.LookupMiss)
	m.RecordLookup(imagecache.TierHighRes, imagecache.LookupHit)
	m.RecordCancel(imagecache.TierHighRes)
	m.RecordEvictions(imagecache.TierThumbnail, 3)
	m.RecordEvictions(imagecache.TierThumbnail, 0)
	m.SetEntries(imagecache.TierThumbnail, 42)
	m.SetInFlight(imagecache.TierHighRes, 7)
	m.ObserveFetch(imagecache.TierThumbnail, false, 10*time.Millisecond)
	m.ObserveFetch(imagecache.TierThumbnail, true, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("thumbnail", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("highres", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancels.WithLabelValues("highres")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.evictions.WithLabelValues("thumbnail")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.entries.WithLabelValues("thumbnail")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.inFlight.WithLabelValues("highres")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.fetchDuration))
}

func TestImageCacheMetrics_ReusesCollectors(t *testing.T) {
	enable(t)
	first := NewImageCacheMetrics().(*imageCacheMetrics)
	second := NewImageCacheMetrics().(*imageCacheMetrics)

	first.RecordCancel(imagecache.TierThumbnail)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.cancels.WithLabelValues("thumbnail")))
}

func TestPipelineMetrics(t *testing.T) {
	enable(t)
	m := NewPipelineMetrics().(*pipelineMetrics)

	m.RecordRange(false)
	m.RecordRange(true)
	m.RecordRange(true)
	m.ObserveChunk(30, 20, 5*time.Millisecond)
	m.ObserveChunk(50, 0, 5*time.Millisecond)
	m.SetQueueDepth(2)
	m.SetState(prefetch.StateDraining)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ranges.WithLabelValues("false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ranges.WithLabelValues("true")))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.fetches.WithLabelValues("issued")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.fetches.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("draining")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("idle")))

	m.SetState(prefetch.StateIdle)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("draining")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("idle")))
}

func TestCatalogMetrics(t *testing.T) {
	enable(t)
	m := NewCatalogMetrics().(*catalogMetrics)

	m.ObserveDecode(catalog.FidelityLow, 2048, time.Millisecond, nil)
	m.ObserveDecode(catalog.FidelityLow, 0, time.Millisecond, errors.New("bad"))
	m.ObserveScan(120, 3, time.Second)
	m.SetPending(9)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodes.WithLabelValues("low", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodes.WithLabelValues("low", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.scanAssets))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.scanSkipped))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.pending))
}

func TestRegistryExposesGridcacheFamilies(t *testing.T) {
	enable(t)
	m := NewPipelineMetrics()
	m.SetQueueDepth(1)

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gridcache_prefetch_queue_depth"])
	assert.True(t, names["go_goroutines"])
}
