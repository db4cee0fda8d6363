package metrics

import (
	"github.com/marmos91/gridcache/pkg/catalog/fs"
)

// NewCatalogMetrics creates a Prometheus-backed fs.Metrics for the
// directory catalog, or nil when metrics are disabled.
func NewCatalogMetrics() fs.Metrics {
	if !IsEnabled() || newPrometheusCatalogMetrics == nil {
		return nil
	}
	return newPrometheusCatalogMetrics()
}

var newPrometheusCatalogMetrics func() fs.Metrics

// RegisterCatalogMetricsConstructor registers the Prometheus catalog
// metrics constructor.
func RegisterCatalogMetricsConstructor(constructor func() fs.Metrics) {
	newPrometheusCatalogMetrics = constructor
}
