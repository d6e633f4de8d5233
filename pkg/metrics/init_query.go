package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTransactionMetrics() {
	r.TransactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphquery_transactions_total",
			Help: "Transactions processed, by outcome (commit or abort)",
		},
		[]string{"outcome"},
	)

	r.TransactionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphquery_transaction_duration_seconds",
			Help:    "Time spent holding the store lock for one transaction",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	r.ReferenceCacheSize = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphquery_reference_cache_entries",
			Help:    "References registered per transaction",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
	)
}

func (r *Registry) initCommandMetrics() {
	r.CommandsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphquery_commands_total",
			Help: "Commands executed, by opcode and status",
		},
		[]string{"op", "status"},
	)

	r.MatchedNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphquery_matched_nodes",
			Help:    "Nodes matched per query, before dedup and limit",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	r.ReturnedNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphquery_returned_nodes",
			Help:    "Records returned per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
}
