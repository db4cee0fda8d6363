package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/gridcache/pkg/catalog"
	"github.com/marmos91/gridcache/pkg/catalog/fs"
	"github.com/marmos91/gridcache/pkg/metrics"
)

// catalogMetrics is the Prometheus implementation of fs.Metrics.
type catalogMetrics struct {
	decodes        *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec
	decodeBytes    prometheus.Histogram
	scanAssets     prometheus.Gauge
	scanSkipped    prometheus.Gauge
	scanDuration   prometheus.Histogram
	pending        prometheus.Gauge
}

// NewCatalogMetrics creates a new Prometheus-backed fs.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCatalogMetrics() fs.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	m := &catalogMetrics{
		decodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcache_catalog_decodes_total",
				Help: "Image requests served by the directory catalog, by fidelity and status",
			},
			[]string{"fidelity", "status"}, // status: "success", "error"
		),
		decodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gridcache_catalog_decode_duration_milliseconds",
				Help: "Time to read, decode and scale one image",
				Buckets: []float64{
					1,    // 1ms
					5,    // 5ms - small PNGs
					10,   // 10ms
					50,   // 50ms - typical JPEG
					100,  // 100ms
					500,  // 500ms - camera originals
					1000, // 1s
					5000, // 5s
				},
			},
			[]string{"fidelity"},
		),
		decodeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "gridcache_catalog_decode_bytes",
				Help: "Size of image files read from disk",
				Buckets: []float64{
					16384,    // 16KB - thumbnails
					131072,   // 128KB
					524288,   // 512KB
					1048576,  // 1MB
					4194304,  // 4MB - phone photos
					16777216, // 16MB
					67108864, // 64MB - raw-sized TIFFs
				},
			},
		),
		scanAssets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gridcache_catalog_assets",
				Help: "Assets found by the last library scan",
			},
		),
		scanSkipped: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gridcache_catalog_skipped_files",
				Help: "Files skipped by the last library scan",
			},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gridcache_catalog_scan_duration_seconds",
				Help:    "Duration of library scans",
				Buckets: prometheus.DefBuckets,
			},
		),
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gridcache_catalog_pending_requests",
				Help: "Image requests queued or decoding",
			},
		),
	}

	m.decodes = metrics.RegisterOrReuse(reg, m.decodes).(*prometheus.CounterVec)
	m.decodeDuration = metrics.RegisterOrReuse(reg, m.decodeDuration).(*prometheus.HistogramVec)
	m.decodeBytes = metrics.RegisterOrReuse(reg, m.decodeBytes).(prometheus.Histogram)
	m.scanAssets = metrics.RegisterOrReuse(reg, m.scanAssets).(prometheus.Gauge)
	m.scanSkipped = metrics.RegisterOrReuse(reg, m.scanSkipped).(prometheus.Gauge)
	m.scanDuration = metrics.RegisterOrReuse(reg, m.scanDuration).(prometheus.Histogram)
	m.pending = metrics.RegisterOrReuse(reg, m.pending).(prometheus.Gauge)

	return m
}

func (m *catalogMetrics) ObserveDecode(fidelity catalog.Fidelity, bytes int64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.decodes.WithLabelValues(fidelity.String(), status).Inc()
	m.decodeDuration.WithLabelValues(fidelity.String()).Observe(duration.Seconds() * 1000)
	if bytes > 0 {
		m.decodeBytes.Observe(float64(bytes))
	}
}

func (m *catalogMetrics) ObserveScan(assets, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.scanAssets.Set(float64(assets))
	m.scanSkipped.Set(float64(skipped))
	m.scanDuration.Observe(duration.Seconds())
}

func (m *catalogMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
