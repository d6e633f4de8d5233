package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-graphquery/pkg/logging"
	"github.com/dd0wney/cluso-graphquery/pkg/metrics"
	"github.com/dd0wney/cluso-graphquery/pkg/query"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

const defaultNNGWorkers = 4

// NNGServer answers requests on a REP socket. Workers socket contexts receive
// concurrently, each with its own query.Handler, so several peers can be
// served at once while their transactions still run one at a time.
type NNGServer struct {
	Addr    string // e.g. tcp://127.0.0.1:7001 or inproc://graphquery
	Workers int
	Engine  *query.Engine
	Framer  *wire.Framer

	Logger  logging.Logger
	Metrics *metrics.Registry

	mu        sync.Mutex
	sock      mangos.Socket
	listener  mangos.Listener
	wg        sync.WaitGroup
	listening atomic.Bool
}

// Listen opens the REP socket and binds Addr. Serve calls it if needed.
func (s *NNGServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sock != nil {
		return nil
	}
	if s.Engine == nil {
		return errors.New("transport: NNGServer requires an Engine")
	}
	if s.Workers <= 0 {
		s.Workers = defaultNNGWorkers
	}
	if s.Framer == nil {
		s.Framer = wire.NewFramer(0, false)
	}
	if s.Logger == nil {
		s.Logger = logging.NewNopLogger()
	}
	if s.Metrics == nil {
		s.Metrics = metrics.DefaultRegistry()
	}

	sock, err := rep.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create REP socket: %w", err)
	}
	sock.SetPipeEventHook(func(ev mangos.PipeEvent, _ mangos.Pipe) {
		switch ev {
		case mangos.PipeEventAttached:
			s.Metrics.ConnectionOpened(TransportNNG)
		case mangos.PipeEventDetached:
			s.Metrics.ConnectionClosed(TransportNNG)
		}
	})

	l, err := sock.NewListener(s.Addr, nil)
	if err != nil {
		sock.Close()
		return fmt.Errorf("failed to create listener for %s: %w", s.Addr, err)
	}
	if err := l.Listen(); err != nil {
		sock.Close()
		return fmt.Errorf("failed to bind REP socket to %s: %w", s.Addr, err)
	}
	s.sock = sock
	s.listener = l
	s.listening.Store(true)
	return nil
}

// ListenAddr returns the bound address, or "" before Listen
func (s *NNGServer) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Address()
}

// Listening reports whether the socket is bound
func (s *NNGServer) Listening() bool {
	return s.listening.Load()
}

// Serve runs the workers until ctx is cancelled, then closes the socket and
// returns ErrServerClosed once every worker has stopped
func (s *NNGServer) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	logger := s.Logger.With(logging.Component("nng"))

	for i := 0; i < s.Workers; i++ {
		sctx, err := s.sock.OpenContext()
		if err != nil {
			s.close()
			s.wg.Wait()
			return fmt.Errorf("failed to open socket context: %w", err)
		}
		handler := s.Engine.NewHandler(logging.Int("worker", i))
		s.wg.Add(1)
		go s.worker(sctx, handler, logger.With(logging.Int("worker", i)))
	}
	logger.Info("nng server listening",
		logging.Addr(s.ListenAddr()),
		logging.Int("workers", s.Workers))

	<-ctx.Done()
	s.close()
	s.wg.Wait()
	logger.Info("nng server stopped")
	return ErrServerClosed
}

func (s *NNGServer) close() {
	if !s.listening.Swap(false) {
		return
	}
	if err := s.sock.Close(); err != nil {
		s.Logger.Warn("failed to close REP socket", logging.Error(err))
	}
}

func (s *NNGServer) worker(sctx mangos.Context, handler *query.Handler, logger logging.Logger) {
	defer s.wg.Done()
	defer sctx.Close()

	for {
		msg, err := sctx.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			s.Metrics.RecordFrame("in", err)
			logger.Warn("receive failed", logging.Error(err))
			continue
		}

		payload, derr := s.Framer.Decode(msg)
		s.Metrics.RecordFrame("in", derr)
		resp := s.Framer.Encode(serveRequest(handler, payload, derr))

		err = sctx.Send(resp)
		s.Metrics.RecordFrame("out", err)
		if err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			logger.Warn("send failed", logging.Error(err))
		}
	}
}

// NNGClient sends batches over a REQ socket. Calls are serialized.
type NNGClient struct {
	mu     sync.Mutex
	sock   mangos.Socket
	framer *wire.Framer
}

// DialNNG connects a REQ socket to addr
func DialNNG(addr string, framer *wire.Framer) (*NNGClient, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create REQ socket: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	if framer == nil {
		framer = wire.NewFramer(0, false)
	}
	return &NNGClient{sock: sock, framer: framer}, nil
}

// Do sends b and waits for its response, bounded by the context deadline
func (c *NNGClient) Do(ctx context.Context, b *wire.Batch) (*wire.ResponseBatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return nil, ErrClientClosed
	}

	timeout := time.Duration(0)
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	if err := c.sock.SetOption(mangos.OptionSendDeadline, timeout); err != nil {
		return nil, err
	}
	if err := c.sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
		return nil, err
	}

	if err := c.sock.Send(c.framer.Encode(wire.MarshalBatch(b))); err != nil {
		return nil, fmt.Errorf("send batch: %w", err)
	}
	msg, err := c.sock.Recv()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	payload, err := c.framer.Decode(msg)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalResponseBatch(payload)
}

// Close closes the socket
func (c *NNGClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}
