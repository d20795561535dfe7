package lineship

import (
	"github.com/bft-labs/lineship/internal/ports"
	"github.com/bft-labs/lineship/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// Option configures optional behavior of Lineship.
type Option func(*options)

// options holds the optional configuration for a Lineship instance.
type options struct {
	logger        ports.Logger
	eventHandler  EventHandler
	plugins       []Plugin
	dialer        ports.Dialer
	factory       ports.TransportFactory
	resolver      ports.DelimiterResolver
	outcomeBuffer int
	spool         *SpoolConfig
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lineship events.
// Events are called synchronously from the dispatch goroutine.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when Lineship starts.
// Plugins are initialized in registration order and shutdown in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithDialer sets a custom dialer for opening sockets. *net.Dialer
// satisfies the interface; tests inject failing or recording dialers.
func WithDialer(dialer ports.Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithTransportFactory replaces the socket transports entirely.
// Intended for tests that script transport behavior.
func WithTransportFactory(factory ports.TransportFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithDelimiterResolver replaces the built-in ${attr}-interpolating
// delimiter resolver with a custom one.
func WithDelimiterResolver(resolver ports.DelimiterResolver) Option {
	return func(o *options) {
		o.resolver = resolver
	}
}

// WithOutcomeBuffer sets the capacity of the Outcomes channel.
// Defaults to the configured queue size.
func WithOutcomeBuffer(n int) Option {
	return func(o *options) {
		o.outcomeBuffer = n
	}
}
