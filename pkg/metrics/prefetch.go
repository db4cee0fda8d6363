package metrics

import (
	"github.com/marmos91/gridcache/pkg/prefetch"
)

// NewPipelineMetrics creates a Prometheus-backed prefetch.Metrics, or nil
// when metrics are disabled.
func NewPipelineMetrics() prefetch.Metrics {
	if !IsEnabled() || newPrometheusPipelineMetrics == nil {
		return nil
	}
	return newPrometheusPipelineMetrics()
}

var newPrometheusPipelineMetrics func() prefetch.Metrics

// RegisterPipelineMetricsConstructor registers the Prometheus pipeline
// metrics constructor.
func RegisterPipelineMetricsConstructor(constructor func() prefetch.Metrics) {
	newPrometheusPipelineMetrics = constructor
}
