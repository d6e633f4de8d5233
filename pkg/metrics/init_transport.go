package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStoreMetrics() {
	r.StoreNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphquery_store_nodes",
			Help: "Nodes in the graph store",
		},
	)

	r.StoreEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphquery_store_edges",
			Help: "Edges in the graph store",
		},
	)
}

func (r *Registry) initTransportMetrics() {
	r.ConnectionsActive = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graphquery_connections_active",
			Help: "Open TCP connections or attached NNG pipes, by transport",
		},
		[]string{"transport"},
	)

	r.FramesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphquery_frames_total",
			Help: "Frames read or written, by direction and status",
		},
		[]string{"direction", "status"},
	)
}
