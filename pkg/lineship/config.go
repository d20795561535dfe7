package lineship

import (
	"fmt"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/pkg/delim"
)

// Config holds the configuration for a Lineship instance.
// Use [Config.SetDefaults] to fill zero fields with sensible defaults.
type Config struct {
	// Protocol selects the transport variant: "tcp" for one ordered
	// reliable stream, "udp" for independent best-effort datagrams.
	Protocol string

	// Host and Port identify the remote listener.
	Host string
	Port int

	// Delimiter separates messages inside a record's payload. It may
	// embed ${attr} references resolved against each record's
	// attributes, and the two-character escape \n is collapsed to a
	// newline. Default: "\n".
	Delimiter string

	// Charset is the IANA name of the character encoding used to turn
	// the delimiter text into wire bytes. Default: UTF-8.
	Charset string

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// ShutdownQuietPeriod is how long teardown lets queued writes drain
	// before the socket is force-closed.
	ShutdownQuietPeriod time.Duration

	// ShutdownTimeout is the hard bound on teardown.
	ShutdownTimeout time.Duration

	// Poll is the idle wait between dispatcher invocations.
	Poll time.Duration

	// QueueSize is the capacity of the submission queue. Submit returns
	// ErrQueueFull when it is exceeded.
	QueueSize int

	// MaxPerDispatch caps how many new records one dispatcher
	// invocation accepts.
	MaxPerDispatch int

	// WriteQueueSize is the capacity of the stream writer queue.
	WriteQueueSize int

	// StateDir is where cumulative counters are persisted as
	// status.json. Empty disables persistence.
	StateDir string

	// ConfigPath is where this configuration was loaded from, if
	// anywhere. It is informational and handed to plugins.
	ConfigPath string

	// Once makes the instance settle all accepted work and stop instead
	// of idling for more.
	Once bool
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.Protocol == "" {
		c.Protocol = "tcp"
	}
	if c.Delimiter == "" {
		c.Delimiter = "\n"
	}
	if c.Charset == "" {
		c.Charset = "UTF-8"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ShutdownQuietPeriod <= 0 {
		c.ShutdownQuietPeriod = 2 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Poll <= 0 {
		c.Poll = 50 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxPerDispatch <= 0 {
		c.MaxPerDispatch = 32
	}
	if c.WriteQueueSize <= 0 {
		c.WriteQueueSize = 64
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Protocol != "tcp" && c.Protocol != "udp" {
		return fmt.Errorf("%w: protocol must be tcp or udp, got %q", domain.ErrInvalidConfig, c.Protocol)
	}
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", domain.ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be in 1..65535, got %d", domain.ErrInvalidConfig, c.Port)
	}
	if c.Delimiter == "" {
		return fmt.Errorf("%w: delimiter must not be empty", domain.ErrInvalidConfig)
	}
	if _, err := delim.LookupCharset(c.Charset); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return nil
}
