package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/gridcache/pkg/metrics"
	"github.com/marmos91/gridcache/pkg/prefetch"
)

// pipelineMetrics is the Prometheus implementation of prefetch.Metrics.
type pipelineMetrics struct {
	ranges        *prometheus.CounterVec
	chunkDuration prometheus.Histogram
	fetches       *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	state         *prometheus.GaugeVec
}

// NewPipelineMetrics creates a new Prometheus-backed prefetch.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPipelineMetrics() prefetch.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	m := &pipelineMetrics{
		ranges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcache_prefetch_ranges_total",
				Help: "Prefetch range requests, by whether they were queued behind a running range",
			},
			[]string{"queued"},
		),
		chunkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gridcache_prefetch_chunk_duration_milliseconds",
				Help:    "Time from issuing a chunk to its barrier releasing",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1ms .. ~8s
			},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcache_prefetch_assets_total",
				Help: "Assets visited by the pipeline, by whether a fetch was issued",
			},
			[]string{"result"}, // result: "issued", "skipped"
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gridcache_prefetch_queue_depth",
				Help: "Ranges waiting behind the running one",
			},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridcache_prefetch_state",
				Help: "1 for the pipeline's current state, 0 otherwise",
			},
			[]string{"state"},
		),
	}

	m.ranges = metrics.RegisterOrReuse(reg, m.ranges).(*prometheus.CounterVec)
	m.chunkDuration = metrics.RegisterOrReuse(reg, m.chunkDuration).(prometheus.Histogram)
	m.fetches = metrics.RegisterOrReuse(reg, m.fetches).(*prometheus.CounterVec)
	m.queueDepth = metrics.RegisterOrReuse(reg, m.queueDepth).(prometheus.Gauge)
	m.state = metrics.RegisterOrReuse(reg, m.state).(*prometheus.GaugeVec)

	return m
}

func (m *pipelineMetrics) RecordRange(queued bool) {
	if m == nil {
		return
	}
	label := "false"
	if queued {
		label = "true"
	}
	m.ranges.WithLabelValues(label).Inc()
}

func (m *pipelineMetrics) ObserveChunk(issued, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.chunkDuration.Observe(duration.Seconds() * 1000)
	m.fetches.WithLabelValues("issued").Add(float64(issued))
	m.fetches.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *pipelineMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

var pipelineStates = []prefetch.State{prefetch.StateIdle, prefetch.StateRunning, prefetch.StateDraining}

func (m *pipelineMetrics) SetState(s prefetch.State) {
	if m == nil {
		return
	}
	for _, st := range pipelineStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(st.String()).Set(v)
	}
}
