package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	Disable()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, NewImageCacheMetrics())

	reg := InitRegistry()
	t.Cleanup(Disable)
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())

	next := InitRegistry()
	assert.NotSame(t, reg, next)
}

func TestRegisterOrReuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Name: "gridcache_test_total", Help: "test"}

	first := RegisterOrReuse(reg, prometheus.NewCounter(opts))
	second := RegisterOrReuse(reg, prometheus.NewCounter(opts))
	assert.Same(t, first, second)

	conflicting := prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridcache_test_total", Help: "other"})
	assert.Panics(t, func() { RegisterOrReuse(reg, conflicting) })
}
