package transport

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphquery/pkg/metrics"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

func startTCP(t *testing.T, srv *TCPServer) (addr string, stop func()) {
	t.Helper()
	if srv.Addr == "" {
		srv.Addr = "127.0.0.1:0"
	}
	require.NoError(t, srv.Listen())
	stop = run(t, srv.Serve)
	return srv.ListenAddr().String(), stop
}

func TestTCPServerRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "snappy"
		}
		t.Run(name, func(t *testing.T) {
			reg := metrics.NewRegistry()
			srv := &TCPServer{Engine: newTestEngine(t), Framer: wire.NewFramer(0, compress), Metrics: reg}
			addr, _ := startTCP(t, srv)
			assert.True(t, srv.Listening())

			client, err := Dial(ctxWithTimeout(t), addr, wire.NewFramer(0, compress))
			require.NoError(t, err)
			defer client.Close()

			resp, err := client.Do(ctxWithTimeout(t), personBatch("bob", "alice"))
			require.NoError(t, err)
			require.Len(t, resp.Groups, 2)
			assert.NotEmpty(t, resp.TxID)
			assert.Equal(t, wire.StatusSuccess, resp.Groups[0].Status)
			assert.Equal(t, []string{"alice", "bob"}, names(t, resp.Groups[1]))

			// one connection serves many transactions
			resp, err = client.Do(ctxWithTimeout(t), personBatch("carol"))
			require.NoError(t, err)
			assert.Equal(t, []string{"alice", "bob", "carol"}, names(t, resp.Groups[1]))

			assert.Equal(t, 1.0, gaugeValue(t, reg.ConnectionsActive.WithLabelValues(TransportTCP)))
			assert.Equal(t, 2.0, counterValue(t, reg.FramesTotal.WithLabelValues("in", "ok")))
		})
	}
}

func TestTCPServerMalformedFrame(t *testing.T) {
	srv := &TCPServer{Engine: newTestEngine(t), Metrics: metrics.NewRegistry()}
	addr, _ := startTCP(t, srv)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	framer := wire.NewFramer(0, false)

	// a truncated varint is not a batch
	require.NoError(t, framer.WriteFrame(conn, []byte{0x08, 0xff}))
	payload, err := framer.ReadFrame(conn)
	require.NoError(t, err)
	resp, err := wire.UnmarshalResponseBatch(payload)
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, wire.CodeMalformedCommand, resp.Groups[0].ErrorCode)

	// the connection stays usable
	require.NoError(t, framer.WriteFrame(conn, wire.MarshalBatch(personBatch("dave"))))
	payload, err = framer.ReadFrame(conn)
	require.NoError(t, err)
	resp, err = wire.UnmarshalResponseBatch(payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"dave"}, names(t, resp.Groups[1]))
}

func TestTCPServerInvalidBatch(t *testing.T) {
	srv := &TCPServer{Engine: newTestEngine(t), Metrics: metrics.NewRegistry()}
	addr, _ := startTCP(t, srv)

	client, err := Dial(ctxWithTimeout(t), addr, nil)
	require.NoError(t, err)
	defer client.Close()

	b := personBatch("erin")
	b.Commands[0].GroupID = 5
	resp, err := client.Do(ctxWithTimeout(t), b)
	require.NoError(t, err)
	require.Len(t, resp.Groups, 2)
	for _, g := range resp.Groups {
		assert.Equal(t, wire.StatusError, g.Status)
		assert.Equal(t, wire.CodeMalformedCommand, g.ErrorCode)
	}
	assert.Zero(t, srv.Engine.Store().NodeCount())
}

func TestTCPServerOversizedFrame(t *testing.T) {
	srv := &TCPServer{Engine: newTestEngine(t), Framer: wire.NewFramer(1024, false), Metrics: metrics.NewRegistry()}
	addr, _ := startTCP(t, srv)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 4096)
	_, err = conn.Write(hdr[:])
	require.NoError(t, err)

	framer := wire.NewFramer(0, false)
	payload, err := framer.ReadFrame(conn)
	require.NoError(t, err)
	resp, err := wire.UnmarshalResponseBatch(payload)
	require.NoError(t, err)
	assert.Equal(t, wire.CodeMalformedCommand, resp.Groups[0].ErrorCode)

	// the server hangs up after answering
	_, err = framer.ReadFrame(conn)
	assert.Error(t, err)
}

func TestTCPServerConcurrentClients(t *testing.T) {
	srv := &TCPServer{Engine: newTestEngine(t), Metrics: metrics.NewRegistry()}
	addr, _ := startTCP(t, srv)

	const clients, batches = 4, 10
	var wg sync.WaitGroup
	errs := make(chan error, clients*batches)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := Dial(ctxWithTimeout(t), addr, nil)
			if err != nil {
				errs <- err
				return
			}
			defer client.Close()
			for j := 0; j < batches; j++ {
				resp, err := client.Do(ctxWithTimeout(t), personBatch("p"))
				if err != nil {
					errs <- err
					return
				}
				if resp.Groups[0].Status != wire.StatusSuccess {
					errs <- assert.AnError
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, uint64(clients*batches), srv.Engine.Store().NodeCount())
}

func TestTCPServerShutdown(t *testing.T) {
	reg := metrics.NewRegistry()
	srv := &TCPServer{Engine: newTestEngine(t), Metrics: reg}
	addr, stop := startTCP(t, srv)

	client, err := Dial(ctxWithTimeout(t), addr, nil)
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Do(ctxWithTimeout(t), personBatch("frank"))
	require.NoError(t, err)

	// the idle connection is woken and closed
	stop()
	assert.False(t, srv.Listening())
	eventually(t, func() bool {
		return gaugeValue(t, reg.ConnectionsActive.WithLabelValues(TransportTCP)) == 0
	}, "connection gauge did not drop")

	_, err = client.Do(ctxWithTimeout(t), personBatch("grace"))
	assert.Error(t, err)

	_, err = net.Dial("tcp", addr)
	assert.Error(t, err, "listener should be closed")
}

func TestTCPServerMaxConnections(t *testing.T) {
	srv := &TCPServer{Engine: newTestEngine(t), MaxConnections: 1, Metrics: metrics.NewRegistry()}
	addr, _ := startTCP(t, srv)

	first, err := Dial(ctxWithTimeout(t), addr, nil)
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Do(ctxWithTimeout(t), personBatch("a"))
	require.NoError(t, err)

	second, err := Dial(ctxWithTimeout(t), addr, nil)
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Do(ctxWithTimeout(t), personBatch("b"))
	assert.Error(t, err, "connection beyond the limit is closed")
}

func TestClientClosed(t *testing.T) {
	srv := &TCPServer{Engine: newTestEngine(t), Metrics: metrics.NewRegistry()}
	addr, _ := startTCP(t, srv)

	client, err := Dial(ctxWithTimeout(t), addr, nil)
	require.NoError(t, err)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.Do(ctxWithTimeout(t), personBatch("x"))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestTCPServerRequiresEngine(t *testing.T) {
	srv := &TCPServer{Addr: "127.0.0.1:0"}
	assert.Error(t, srv.Listen())
}

func TestTCPServerEmptyBatch(t *testing.T) {
	srv := &TCPServer{Engine: newTestEngine(t), Framer: wire.NewFramer(0, false)}
	addr, _ := startTCP(t, srv)

	client, err := Dial(ctxWithTimeout(t), addr, wire.NewFramer(0, false))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Do(ctxWithTimeout(t), &wire.Batch{NumGroups: 1})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, wire.StatusSuccess, resp.Groups[0].Status)

	resp, err = client.Do(ctxWithTimeout(t), personBatch("dave"))
	require.NoError(t, err)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, []string{"dave"}, names(t, resp.Groups[1]))
}
