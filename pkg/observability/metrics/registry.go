// Package metrics provides Prometheus metrics for document store operations.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry collects the store metrics, plus Go runtime metrics unless
// disabled, on a registry of its own.
type Registry struct {
	registry *prometheus.Registry
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	runtime bool
}

// WithoutRuntimeMetrics leaves out the Go and process collectors.
func WithoutRuntimeMetrics() RegistryOption {
	return func(o *registryOptions) {
		o.runtime = false
	}
}

// NewRegistry creates a registry holding the store collectors.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{runtime: true}
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(storeOperationsTotal, storeOperationDuration, queryFiltersDropped)
	if o.runtime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return &Registry{registry: reg}
}

// Register adds a collector next to the store metrics.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every metric to path in the text exposition format,
// for the node exporter textfile collector. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
