package ports

import "context"

// Completion is the resolution handle for one asynchronous message send.
// It resolves exactly once when the transport finishes the send, either
// because the write was accepted by the transport buffer or because it
// failed.
type Completion interface {
	// Done returns a channel that is closed once the send has resolved.
	Done() <-chan struct{}

	// Err returns the send error, or nil on success. Its value is only
	// meaningful after Done is closed; before that it returns nil.
	Err() error
}

// Transport delivers messages to a single remote peer. Implementations
// cover two delivery semantics: a reliable ordered byte stream (TCP) and
// best-effort independent datagrams (UDP).
type Transport interface {
	// Open establishes the connection. A failure here is a
	// domain.ConnectError, distinguishable from a mid-stream send failure.
	// Open must be called once before Send.
	Open(ctx context.Context) error

	// Send hands one message to the transport and returns its completion
	// handle. Stream implementations frame the message with the transport's
	// delimiter and preserve submission order; datagram implementations
	// send the message as one datagram with no framing and resolve the
	// completion before returning.
	//
	// A synchronous error means the connection is no longer usable; the
	// caller must not issue further sends on it.
	Send(msg []byte) (Completion, error)

	// Shutdown releases the socket resource. It is idempotent, safe to call
	// on a never-opened transport, and bounded by the transport's quiet
	// period and shutdown timeout. After Shutdown returns, every completion
	// handed out by Send has resolved.
	Shutdown(ctx context.Context) error
}

// TransportFactory builds an unopened Transport bound to the given framing
// delimiter. The dispatcher calls it lazily, on the first send attempt,
// with the delimiter resolved for the record that triggered the connection.
type TransportFactory func(framing []byte) Transport
