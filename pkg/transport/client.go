package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// ErrClientClosed is returned by Do after Close
var ErrClientClosed = errors.New("transport: client closed")

// Client sends batches to a TCPServer over one connection. Calls are
// serialized; every batch is its own transaction on the server.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	framer *wire.Framer
}

// Dial connects to addr. A nil framer uses the defaults without compression.
func Dial(ctx context.Context, addr string, framer *wire.Framer) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if framer == nil {
		framer = wire.NewFramer(0, false)
	}
	return &Client{conn: conn, framer: framer}, nil
}

// Do sends b and waits for its response. The context deadline, if any, bounds
// the whole exchange. After a transport error the client should be closed.
func (c *Client) Do(ctx context.Context, b *wire.Batch) (*wire.ResponseBatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrClientClosed
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := c.framer.WriteFrame(c.conn, wire.MarshalBatch(b)); err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("send batch: %w", err))
	}
	payload, err := c.framer.ReadFrame(c.conn)
	if err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("read response: %w", err))
	}
	return wire.UnmarshalResponseBatch(payload)
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
