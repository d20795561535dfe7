package lineship

import "context"

// PluginConfig is the slice of instance configuration handed to plugins
// at initialization.
type PluginConfig struct {
	// Protocol, Host, and Port identify the destination the instance
	// dispatches to.
	Protocol string
	Host     string
	Port     int

	// StateDir is where the instance persists status.json, if anywhere.
	StateDir string

	// SpoolDir is the watched spool directory, if one is configured.
	SpoolDir string

	// ConfigPath is where the configuration was loaded from, if anywhere.
	ConfigPath string

	// Logger is the instance logger.
	Logger Logger
}

// BasePlugin provides no-op defaults for optional Plugin methods. Embed
// it and override what the plugin needs.
type BasePlugin struct{}

// Initialize does nothing.
func (BasePlugin) Initialize(ctx context.Context, cfg PluginConfig) error { return nil }

// Shutdown does nothing.
func (BasePlugin) Shutdown(ctx context.Context) error { return nil }

// Plugin extends a Lineship instance with optional functionality.
// Plugins are initialized in registration order when Start is called and
// shut down in reverse order during Stop.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize sets the plugin up. An error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin and releases its resources.
	Shutdown(ctx context.Context) error
}
