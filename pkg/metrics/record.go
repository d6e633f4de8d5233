package metrics

import "time"

// RecordTransaction records the end of a transaction
func (r *Registry) RecordTransaction(committed bool, duration time.Duration, references int) {
	outcome := "abort"
	if committed {
		outcome = "commit"
	}
	r.TransactionsTotal.WithLabelValues(outcome).Inc()
	r.TransactionDuration.Observe(duration.Seconds())
	r.ReferenceCacheSize.Observe(float64(references))
}

// RecordCommand records one executed command
func (r *Registry) RecordCommand(op string, ok bool) {
	status := "error"
	if ok {
		status = "success"
	}
	r.CommandsTotal.WithLabelValues(op, status).Inc()
}

// RecordProjection records the counts of one query
func (r *Registry) RecordProjection(matched, returned int64) {
	r.MatchedNodes.Observe(float64(matched))
	r.ReturnedNodes.Observe(float64(returned))
}

// UpdateStoreSize sets the store gauges
func (r *Registry) UpdateStoreSize(nodes, edges uint64) {
	r.StoreNodes.Set(float64(nodes))
	r.StoreEdges.Set(float64(edges))
}

// ConnectionOpened increments the active connection gauge of transport
func (r *Registry) ConnectionOpened(transport string) {
	r.ConnectionsActive.WithLabelValues(transport).Inc()
}

// ConnectionClosed decrements the active connection gauge of transport
func (r *Registry) ConnectionClosed(transport string) {
	r.ConnectionsActive.WithLabelValues(transport).Dec()
}

// RecordFrame records a frame read ("in") or written ("out")
func (r *Registry) RecordFrame(direction string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.FramesTotal.WithLabelValues(direction, status).Inc()
}
