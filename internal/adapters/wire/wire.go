// Package wire implements ports.Transport over real sockets: a stream
// variant for TCP and a datagram variant for UDP.
//
// The stream variant owns one ordered connection and a single writer
// goroutine; every Send is framed with the transport's delimiter and
// queued to that writer, which resolves the completion once the write is
// accepted by the kernel. The datagram variant has no queue and no
// framing; each Send is one datagram whose completion is resolved before
// Send returns.
package wire

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
	"github.com/bft-labs/lineship/pkg/log"
)

// Supported protocol names.
const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultWriteQueueSize  = 64
	DefaultQuietPeriod     = 2 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config carries the socket-level settings shared by both transport
// variants. The zero value is completed by withDefaults.
type Config struct {
	// Host and Port identify the remote peer.
	Host string
	Port int

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// WriteQueueSize is the capacity of the stream writer queue. A full
	// queue blocks Send; that is the transport's back-pressure point.
	WriteQueueSize int

	// QuietPeriod is how long Shutdown lets queued writes drain before
	// force-closing the socket.
	QuietPeriod time.Duration

	// ShutdownTimeout is the hard bound on Shutdown.
	ShutdownTimeout time.Duration

	// Dialer is used to open sockets. Defaults to a plain net.Dialer.
	Dialer ports.Dialer

	// Logger receives transport-level events. Defaults to no-op.
	Logger ports.Logger
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.WriteQueueSize <= 0 {
		c.WriteQueueSize = DefaultWriteQueueSize
	}
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = DefaultQuietPeriod
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}
	return c
}

func (c Config) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Factory returns a ports.TransportFactory building the variant for the
// given protocol. The factory itself is cheap; sockets are opened only
// when the transport's Open is called.
func Factory(protocol string, cfg Config) (ports.TransportFactory, error) {
	switch protocol {
	case ProtocolTCP:
		return func(framing []byte) ports.Transport {
			return NewStreamConn(cfg, framing)
		}, nil
	case ProtocolUDP:
		return func(framing []byte) ports.Transport {
			return NewDatagramConn(cfg)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown protocol %q", domain.ErrInvalidConfig, protocol)
	}
}
