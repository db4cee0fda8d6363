// Package prometheus implements the component metrics interfaces on top of
// the registry managed by pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/gridcache/pkg/imagecache"
	"github.com/marmos91/gridcache/pkg/metrics"
)

func init() {
	metrics.RegisterImageCacheMetricsConstructor(NewImageCacheMetrics)
	metrics.RegisterPipelineMetricsConstructor(NewPipelineMetrics)
	metrics.RegisterCatalogMetricsConstructor(NewCatalogMetrics)
}

// imageCacheMetrics is the Prometheus implementation of imagecache.Metrics.
type imageCacheMetrics struct {
	lookups       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cancels       *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	entries       *prometheus.GaugeVec
	inFlight      *prometheus.GaugeVec
}

// NewImageCacheMetrics creates a new Prometheus-backed imagecache.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewImageCacheMetrics() imagecache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	m := &imageCacheMetrics{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcache_imagecache_lookups_total",
				Help: "Fetch calls by tier and outcome",
			},
			[]string{"tier", "outcome"}, // outcome: "hit", "miss", "joined"
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gridcache_imagecache_fetch_duration_milliseconds",
				Help: "Latency of catalog requests from issue to delivery",
				Buckets: []float64{
					1,    // 1ms - memory-backed catalogs
					5,    // 5ms
					10,   // 10ms - small thumbnails
					25,   // 25ms
					50,   // 50ms
					100,  // 100ms - full decodes
					250,  // 250ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s - large originals
				},
			},
			[]string{"tier", "result"}, // result: "image", "empty"
		),
		cancels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcache_imagecache_cancellations_total",
				Help: "Cancelled in-flight requests by tier",
			},
			[]string{"tier"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcache_imagecache_evictions_total",
				Help: "Evicted images by tier",
			},
			[]string{"tier"},
		),
		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridcache_imagecache_entries",
				Help: "Resident images by tier",
			},
			[]string{"tier"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridcache_imagecache_inflight_requests",
				Help: "Outstanding catalog requests by tier",
			},
			[]string{"tier"},
		),
	}

	m.lookups = metrics.RegisterOrReuse(reg, m.lookups).(*prometheus.CounterVec)
	m.fetchDuration = metrics.RegisterOrReuse(reg, m.fetchDuration).(*prometheus.HistogramVec)
	m.cancels = metrics.RegisterOrReuse(reg, m.cancels).(*prometheus.CounterVec)
	m.evictions = metrics.RegisterOrReuse(reg, m.evictions).(*prometheus.CounterVec)
	m.entries = metrics.RegisterOrReuse(reg, m.entries).(*prometheus.GaugeVec)
	m.inFlight = metrics.RegisterOrReuse(reg, m.inFlight).(*prometheus.GaugeVec)

	return m
}

func (m *imageCacheMetrics) RecordLookup(tier imagecache.Tier, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(tier.String(), outcome).Inc()
}

func (m *imageCacheMetrics) ObserveFetch(tier imagecache.Tier, empty bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "image"
	if empty {
		result = "empty"
	}
	m.fetchDuration.WithLabelValues(tier.String(), result).Observe(duration.Seconds() * 1000)
}

func (m *imageCacheMetrics) RecordCancel(tier imagecache.Tier) {
	if m == nil {
		return
	}
	m.cancels.WithLabelValues(tier.String()).Inc()
}

func (m *imageCacheMetrics) RecordEvictions(tier imagecache.Tier, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.WithLabelValues(tier.String()).Add(float64(n))
}

func (m *imageCacheMetrics) SetEntries(tier imagecache.Tier, n int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(tier.String()).Set(float64(n))
}

func (m *imageCacheMetrics) SetInFlight(tier imagecache.Tier, n int) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(tier.String()).Set(float64(n))
}
