package wire

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
)

// StreamConn is the TCP implementation of ports.Transport. It owns one
// ordered connection and one writer goroutine; Send enqueues framed
// messages to the writer, which resolves each completion when the kernel
// accepts the write.
//
// Open, Send, and Shutdown must be called from one goroutine at a time;
// completions resolve on the writer goroutine. The first write failure
// latches: the connection stops transmitting, every queued message
// resolves with the same failure, and later Sends fail synchronously.
type StreamConn struct {
	cfg     Config
	framing []byte
	logger  ports.Logger

	conn      net.Conn
	sendq     chan queuedSend
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	opened bool
	closed bool

	mu       sync.Mutex
	writeErr error
}

type queuedSend struct {
	msg []byte
	res *sendResult
}

// NewStreamConn builds an unopened stream transport framed with the
// given delimiter.
func NewStreamConn(cfg Config, framing []byte) *StreamConn {
	cfg = cfg.withDefaults()
	return &StreamConn{
		cfg:     cfg,
		framing: append([]byte(nil), framing...),
		logger:  cfg.Logger,
		sendq:   make(chan queuedSend, cfg.WriteQueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Open dials the remote peer and starts the writer goroutine.
func (c *StreamConn) Open(ctx context.Context) error {
	if c.closed {
		return domain.ErrTransportClosed
	}
	if c.opened {
		return nil
	}

	addr := c.cfg.address()
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.cfg.Dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return &domain.ConnectError{Addr: addr, Err: err}
	}

	c.conn = conn
	c.opened = true
	go c.writeLoop()

	c.logger.Debug("stream connected",
		ports.String("addr", addr),
		ports.Int("write_queue", c.cfg.WriteQueueSize))
	return nil
}

// Send frames msg with the transport delimiter, unless it already ends
// with it, and queues it for the writer. A full queue blocks.
func (c *StreamConn) Send(msg []byte) (ports.Completion, error) {
	if !c.opened || c.closed {
		return nil, domain.ErrTransportClosed
	}
	if err := c.latched(); err != nil {
		return nil, &domain.SendError{Err: err}
	}

	res := newSendResult()
	select {
	case c.sendq <- queuedSend{msg: msg, res: res}:
		return res, nil
	case <-c.done:
		return nil, domain.ErrTransportClosed
	}
}

// Shutdown drains queued writes for the quiet period, then force-closes
// the socket. It is idempotent and safe on a never-opened transport.
func (c *StreamConn) Shutdown(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if !c.opened {
		return nil
	}

	close(c.quit)

	quiet := time.NewTimer(c.cfg.QuietPeriod)
	defer quiet.Stop()
	select {
	case <-c.done:
	case <-quiet.C:
		c.logger.Debug("quiet period elapsed, forcing stream close",
			ports.String("addr", c.cfg.address()))
		c.closeConn()
	case <-ctx.Done():
		c.closeConn()
	}

	hard := time.NewTimer(c.cfg.ShutdownTimeout)
	defer hard.Stop()
	select {
	case <-c.done:
	case <-hard.C:
		c.closeConn()
		return domain.ErrShutdownTimeout
	}

	c.closeConn()
	return nil
}

// writeLoop is the single writer. It consumes the queue until quit,
// then drains whatever is still buffered and exits.
func (c *StreamConn) writeLoop() {
	defer close(c.done)
	for {
		select {
		case q := <-c.sendq:
			c.write(q)
		case <-c.quit:
			for {
				select {
				case q := <-c.sendq:
					c.write(q)
				default:
					return
				}
			}
		}
	}
}

func (c *StreamConn) write(q queuedSend) {
	if err := c.latched(); err != nil {
		q.res.resolve(&domain.SendError{Err: err})
		return
	}
	if _, err := c.conn.Write(c.frame(q.msg)); err != nil {
		c.latch(err)
		c.logger.Warn("stream write failed",
			ports.String("addr", c.cfg.address()),
			ports.Err(err))
		q.res.resolve(&domain.SendError{Err: err})
		return
	}
	q.res.resolve(nil)
}

func (c *StreamConn) frame(msg []byte) []byte {
	if len(c.framing) == 0 || bytes.HasSuffix(msg, c.framing) {
		return msg
	}
	out := make([]byte, 0, len(msg)+len(c.framing))
	out = append(out, msg...)
	return append(out, c.framing...)
}

func (c *StreamConn) latch(err error) {
	c.mu.Lock()
	if c.writeErr == nil {
		c.writeErr = err
	}
	c.mu.Unlock()
}

func (c *StreamConn) latched() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeErr
}

func (c *StreamConn) closeConn() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
