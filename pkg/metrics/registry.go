// Package metrics exposes Prometheus metrics for transactions, commands,
// transports and the store.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric of the process
type Registry struct {
	// Transactions
	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration prometheus.Histogram
	ReferenceCacheSize  prometheus.Histogram

	// Commands
	CommandsTotal *prometheus.CounterVec
	MatchedNodes  prometheus.Histogram
	ReturnedNodes prometheus.Histogram

	// Store
	StoreNodes prometheus.Gauge
	StoreEdges prometheus.Gauge

	// Transport
	ConnectionsActive *prometheus.GaugeVec
	FramesTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric registered, plus the Go
// runtime and process collectors
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.initTransactionMetrics()
	r.initCommandMetrics()
	r.initStoreMetrics()
	r.initTransportMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
