// Package listen provides a capture listener for delimited TCP streams
// and UDP datagrams.
//
// It is the receiving end of a dispatcher: every message that arrives
// is delivered on a channel, TCP streams split on the same delimiter
// the sender frames with, UDP datagrams taken whole. The lineship
// listen command and the end-to-end tests are built on it.
package listen

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
)

// Protocols the listener accepts.
const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"
)

// Default configuration values.
const (
	DefaultAddr           = "127.0.0.1:0"
	DefaultBufferSize     = 256
	DefaultMaxMessageSize = 1 << 20
)

// Config configures a Listener.
type Config struct {
	// Protocol is "tcp" or "udp". Defaults to "tcp".
	Protocol string

	// Addr is the address to listen on. Defaults to 127.0.0.1 with an
	// ephemeral port.
	Addr string

	// Delimiter separates messages on a TCP stream. Required for TCP,
	// ignored for UDP.
	Delimiter []byte

	// BufferSize is the capacity of the Messages channel.
	BufferSize int

	// MaxMessageSize caps the length of a single message. A TCP stream
	// carrying a longer message is dropped.
	MaxMessageSize int
}

func (c Config) withDefaults() Config {
	if c.Protocol == "" {
		c.Protocol = ProtocolTCP
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	return c
}

// Message is one received message.
type Message struct {
	// Data is the message bytes, delimiter not included.
	Data []byte

	// From is the sender's remote address.
	From net.Addr
}

// Listener receives messages on a socket and hands them to the caller
// over a channel.
type Listener struct {
	proto   string
	delim   []byte
	maxSize int

	tcp net.Listener
	udp net.PacketConn

	msgs chan Message
	quit chan struct{}
	wg   sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	closeOnce sync.Once
	closeErr  error
}

// New opens the socket and starts receiving.
func New(cfg Config) (*Listener, error) {
	cfg = cfg.withDefaults()

	l := &Listener{
		proto:   cfg.Protocol,
		delim:   append([]byte(nil), cfg.Delimiter...),
		maxSize: cfg.MaxMessageSize,
		msgs:    make(chan Message, cfg.BufferSize),
		quit:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}

	switch cfg.Protocol {
	case ProtocolTCP:
		if len(l.delim) == 0 {
			return nil, errors.New("listen: stream listener needs a delimiter")
		}
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		l.tcp = ln
		l.wg.Add(1)
		go l.serveStream()
	case ProtocolUDP:
		pc, err := net.ListenPacket("udp", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		l.udp = pc
		l.wg.Add(1)
		go l.serveDatagram()
	default:
		return nil, fmt.Errorf("listen: unknown protocol %q", cfg.Protocol)
	}

	return l, nil
}

// Addr returns the bound address. Useful with an ephemeral port.
func (l *Listener) Addr() net.Addr {
	if l.tcp != nil {
		return l.tcp.Addr()
	}
	return l.udp.LocalAddr()
}

// Port returns the bound port.
func (l *Listener) Port() int {
	switch a := l.Addr().(type) {
	case *net.TCPAddr:
		return a.Port
	case *net.UDPAddr:
		return a.Port
	default:
		return 0
	}
}

// Messages returns the channel received messages arrive on. The channel
// is closed by Close after the last message has been delivered.
func (l *Listener) Messages() <-chan Message {
	return l.msgs
}

// Close stops the listener, tears down open connections, and closes the
// Messages channel. Safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.quit)
		if l.tcp != nil {
			l.closeErr = l.tcp.Close()
		}
		if l.udp != nil {
			l.closeErr = l.udp.Close()
		}
		l.mu.Lock()
		for c := range l.conns {
			c.Close()
		}
		l.mu.Unlock()
		l.wg.Wait()
		close(l.msgs)
	})
	return l.closeErr
}

func (l *Listener) serveStream() {
	defer l.wg.Done()
	for {
		conn, err := l.tcp.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		if !l.track(conn) {
			conn.Close()
			continue
		}
		l.wg.Add(1)
		go l.readStream(conn)
	}
}

// track registers a connection so Close can tear it down. Reports false
// once shutdown has begun.
func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.quit:
		return false
	default:
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
}

func (l *Listener) readStream(conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), l.maxSize)
	sc.Split(splitOn(l.delim))
	for sc.Scan() {
		if !l.deliver(sc.Bytes(), conn.RemoteAddr()) {
			return
		}
	}
}

func (l *Listener) serveDatagram() {
	defer l.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, from, err := l.udp.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-l.quit:
				return
			default:
			}
			continue
		}
		if !l.deliver(buf[:n], from) {
			return
		}
	}
}

// deliver copies data out of the read buffer and hands it to the
// channel. Reports false when shutdown interrupts the delivery.
func (l *Listener) deliver(data []byte, from net.Addr) bool {
	msg := Message{Data: append([]byte(nil), data...), From: from}
	select {
	case l.msgs <- msg:
		return true
	case <-l.quit:
		return false
	}
}

// splitOn builds a bufio.SplitFunc that cuts the stream at every
// occurrence of delim. A non-empty remainder at EOF is a final message.
func splitOn(delim []byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.Index(data, delim); i >= 0 {
			return i + len(delim), data[:i], nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}
