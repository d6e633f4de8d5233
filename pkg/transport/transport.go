// Package transport serves query handlers to remote clients.
//
// Every connection (TCP) or socket context (NNG) owns exactly one
// query.Handler. Handlers share the engine, which serializes their
// transactions.
package transport

import (
	"errors"

	"github.com/dd0wney/cluso-graphquery/pkg/query"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

const (
	TransportTCP = "tcp"
	TransportNNG = "nng"
)

// ErrServerClosed is returned by Serve after the context is cancelled
var ErrServerClosed = errors.New("transport: server closed")

// serveRequest decodes one request payload, runs it and encodes the response.
// Payloads that do not decode are answered with a MalformedCommand response.
func serveRequest(h *query.Handler, payload []byte, decodeErr error) []byte {
	var resp *wire.ResponseBatch
	if decodeErr != nil {
		resp = h.Reject(decodeErr)
	} else if batch, err := wire.UnmarshalBatch(payload); err != nil {
		resp = h.Reject(err)
	} else {
		resp = h.ProcessBatch(batch)
	}
	return wire.MarshalResponseBatch(resp)
}
