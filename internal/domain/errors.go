package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the lineship domain.
// These errors are returned by the public API and can be checked with
// errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("lineship: already running")

	// ErrNotRunning is returned when Stop() or Submit() is called on a
	// stopped instance.
	ErrNotRunning = errors.New("lineship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("lineship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("lineship: invalid configuration")

	// ErrQueueFull is returned by Submit when the intake queue is at capacity.
	ErrQueueFull = errors.New("lineship: intake queue full")

	// ErrEmptyDelimiter is returned when delimiter resolution produces an
	// empty byte sequence. Splitting on an empty delimiter is undefined.
	ErrEmptyDelimiter = errors.New("lineship: resolved delimiter is empty")

	// ErrShuttingDown marks records that were accepted but never dispatched
	// because the instance stopped first.
	ErrShuttingDown = errors.New("lineship: shutting down")

	// ErrTransportClosed is returned by sends issued after the transport
	// connection was shut down or latched a write failure.
	ErrTransportClosed = errors.New("lineship: transport closed")
)

// ConfigError marks a per-record configuration failure, such as an empty
// resolved delimiter or an unusable charset. It is surfaced before any
// network activity for the record.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %v", e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectError marks a failure to establish the transport connection:
// endpoint unreachable for streams, bind or resolve failure for datagrams.
// The record in progress fails immediately with no pending sends created.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect %s: %v", e.Addr, e.Err) }

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError marks a write failure on a previously established connection.
// The connection is discarded; every message of the affected record already
// handed to it resolves with this error.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send: %v", e.Err) }

func (e *SendError) Unwrap() error { return e.Err }

// IsConnectError reports whether err is (or wraps) a ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// IsSendError reports whether err is (or wraps) a SendError.
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
