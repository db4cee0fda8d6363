package metrics

import (
	"github.com/marmos91/gridcache/pkg/imagecache"
)

// NewImageCacheMetrics creates a Prometheus-backed imagecache.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// prometheus package was not linked in. Pass the result straight to
// imagecache.New; a nil value disables collection.
//
//	metrics.InitRegistry()
//	cache := imagecache.New(cat, cfg, metrics.NewImageCacheMetrics())
func NewImageCacheMetrics() imagecache.Metrics {
	if !IsEnabled() || newPrometheusImageCacheMetrics == nil {
		return nil
	}
	return newPrometheusImageCacheMetrics()
}

// newPrometheusImageCacheMetrics is set by pkg/metrics/prometheus.
// The indirection keeps this package free of the implementation's imports.
var newPrometheusImageCacheMetrics func() imagecache.Metrics

// RegisterImageCacheMetricsConstructor registers the Prometheus image cache
// metrics constructor. Called by pkg/metrics/prometheus during init.
func RegisterImageCacheMetricsConstructor(constructor func() imagecache.Metrics) {
	newPrometheusImageCacheMetrics = constructor
}
