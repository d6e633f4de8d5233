package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-graphquery/pkg/logging"
	"github.com/dd0wney/cluso-graphquery/pkg/metrics"
	"github.com/dd0wney/cluso-graphquery/pkg/query"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// TCPServer accepts length-prefixed request frames over TCP. Each connection
// is served by its own goroutine and query.Handler; requests on one connection
// are answered in order.
type TCPServer struct {
	Addr   string
	Engine *query.Engine
	Framer *wire.Framer

	// ReadTimeout bounds how long a connection may stay idle between requests;
	// WriteTimeout bounds writing one response. Zero disables either.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxConnections rejects connections beyond this many; zero is unlimited
	MaxConnections int

	Logger  logging.Logger
	Metrics *metrics.Registry

	mu        sync.Mutex
	listener  net.Listener
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
	listening atomic.Bool
}

// Listen binds the listening socket. Serve calls it if needed.
func (s *TCPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	if s.Engine == nil {
		return errors.New("transport: TCPServer requires an Engine")
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

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr, err)
	}
	s.listener = ln
	s.conns = make(map[net.Conn]struct{})
	s.listening.Store(true)
	return nil
}

// ListenAddr returns the bound address, or nil before Listen
func (s *TCPServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listening reports whether the server accepts connections
func (s *TCPServer) Listening() bool {
	return s.listening.Load()
}

// Serve accepts connections until ctx is cancelled. Connections finish the
// request they are processing, then close. Serve returns ErrServerClosed once
// every connection has ended.
func (s *TCPServer) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	logger := s.Logger.With(logging.Component("tcp"))
	logger.Info("tcp server listening", logging.Addr(s.listener.Addr().String()))

	stop := context.AfterFunc(ctx, s.shutdown)
	defer stop()

	var sem chan struct{}
	if s.MaxConnections > 0 {
		sem = make(chan struct{}, s.MaxConnections)
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				logger.Info("tcp server stopped")
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.shutdown()
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}

		if sem != nil {
			select {
			case sem <- struct{}{}:
			default:
				logger.Warn("connection rejected: at capacity",
					logging.Addr(conn.RemoteAddr().String()),
					logging.Int("max_connections", s.MaxConnections))
				conn.Close()
				continue
			}
		}

		if !s.track(conn) {
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			s.serveConn(conn, logger)
		}()
	}
}

// ListenAndServe is Listen followed by Serve
func (s *TCPServer) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// track registers conn unless the server is shutting down
func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listening.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// shutdown closes the listener and wakes every connection blocked waiting for
// its next request
func (s *TCPServer) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listening.Swap(false) {
		return
	}
	s.listener.Close()
	now := time.Now()
	for conn := range s.conns {
		conn.SetReadDeadline(now)
	}
}

func (s *TCPServer) serveConn(conn net.Conn, logger logging.Logger) {
	connID := uuid.NewString()
	remote := conn.RemoteAddr().String()
	handler := s.Engine.NewHandler(logging.ConnID(connID), logging.Addr(remote))
	logger = logger.With(logging.ConnID(connID))

	s.Metrics.ConnectionOpened(TransportTCP)
	logger.Info("connection opened", logging.Addr(remote))
	defer func() {
		s.untrack(conn)
		conn.Close()
		s.Metrics.ConnectionClosed(TransportTCP)
		logger.Info("connection closed")
	}()

	for {
		if s.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		}
		// checked after arming the deadline so a concurrent shutdown cannot be missed
		if !s.listening.Load() {
			return
		}

		payload, err := s.Framer.ReadFrame(conn)
		switch {
		case err == nil, errors.Is(err, wire.ErrMalformed):
			s.Metrics.RecordFrame("in", err)
		case errors.Is(err, wire.ErrFrameTooLarge):
			// the rest of the frame is unread, so the stream cannot continue
			s.Metrics.RecordFrame("in", err)
			logger.Warn("oversized frame", logging.Error(err))
			s.reply(conn, handler, nil, err, logger)
			return
		case errors.Is(err, io.EOF):
			return
		default:
			if s.listening.Load() {
				s.Metrics.RecordFrame("in", err)
				logger.Warn("read failed", logging.Error(err))
			}
			return
		}

		if !s.reply(conn, handler, payload, err, logger) {
			return
		}
	}
}

// reply answers one request and reports whether the connection is still usable
func (s *TCPServer) reply(conn net.Conn, handler *query.Handler, payload []byte, decodeErr error, logger logging.Logger) bool {
	resp := serveRequest(handler, payload, decodeErr)
	if s.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	err := s.Framer.WriteFrame(conn, resp)
	s.Metrics.RecordFrame("out", err)
	if err != nil {
		logger.Warn("write failed", logging.Error(err))
		return false
	}
	return true
}
