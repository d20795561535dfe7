package wire

import (
	"context"
	"net"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
)

// DatagramConn is the UDP implementation of ports.Transport. Each Send
// is one datagram, carrying the message bytes with no framing; splitting
// already removed the delimiter and datagram boundaries keep the
// messages apart. Completions are resolved before Send returns because
// datagram delivery has no acknowledgment to wait for.
//
// Like StreamConn, methods must be called from one goroutine at a time.
type DatagramConn struct {
	cfg    Config
	logger ports.Logger

	conn   net.Conn
	opened bool
	closed bool
	err    error
}

// NewDatagramConn builds an unopened datagram transport.
func NewDatagramConn(cfg Config) *DatagramConn {
	cfg = cfg.withDefaults()
	return &DatagramConn{cfg: cfg, logger: cfg.Logger}
}

// Open resolves the remote address and binds the local socket. There is
// no handshake; unreachability surfaces per send, if at all.
func (c *DatagramConn) Open(ctx context.Context) error {
	if c.closed {
		return domain.ErrTransportClosed
	}
	if c.opened {
		return nil
	}

	addr := c.cfg.address()
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.cfg.Dialer.DialContext(dialCtx, "udp", addr)
	if err != nil {
		return &domain.ConnectError{Addr: addr, Err: err}
	}

	c.conn = conn
	c.opened = true
	c.logger.Debug("datagram socket ready", ports.String("addr", addr))
	return nil
}

// Send transmits msg as one datagram and returns an already-resolved
// completion.
func (c *DatagramConn) Send(msg []byte) (ports.Completion, error) {
	if !c.opened || c.closed {
		return nil, domain.ErrTransportClosed
	}
	if c.err != nil {
		return nil, &domain.SendError{Err: c.err}
	}

	if _, err := c.conn.Write(msg); err != nil {
		c.err = err
		c.logger.Warn("datagram write failed",
			ports.String("addr", c.cfg.address()),
			ports.Err(err))
		return nil, &domain.SendError{Err: err}
	}
	return resolvedResult(nil), nil
}

// Shutdown closes the socket. Idempotent; a never-opened transport is a
// no-op.
func (c *DatagramConn) Shutdown(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return nil
}
