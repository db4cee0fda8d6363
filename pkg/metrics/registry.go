// Package metrics exposes the process-wide Prometheus registry and the
// constructors for each component's metrics.
//
// Metrics are disabled until InitRegistry is called. While disabled every
// constructor returns nil, and components treat a nil Metrics as "collect
// nothing" with zero overhead.
//
// The Prometheus-backed implementations live in pkg/metrics/prometheus and
// register themselves here during package initialization. Import that
// package (usually for side effects) wherever metrics are enabled:
//
//	import _ "github.com/marmos91/gridcache/pkg/metrics/prometheus"
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates a fresh registry with the Go runtime and process
// collectors and enables metrics. Calling it again replaces the registry.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// Disable drops the registry. Constructors return nil afterwards.
func Disable() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil when disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// RegisterOrReuse registers c with reg. If an identical collector is already
// registered, the existing one is returned so constructors can run more than
// once against the same registry.
func RegisterOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
