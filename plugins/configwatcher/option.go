package configwatcher

import "github.com/bft-labs/lineship/pkg/lineship"

// WithConfigWatcher returns a lineship Option that enables config file
// watching. When enabled, the plugin monitors the config file the
// instance was started from and invokes OnChange when it changes.
//
// Usage:
//
//	l, err := lineship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	        OnChange:      func(path string) { reload <- path },
//	    }),
//	)
func WithConfigWatcher(cfg Config) lineship.Option {
	plugin := New(cfg)
	return lineship.WithPlugin(plugin)
}

// WithDefaultConfigWatcher returns a lineship Option that enables config
// watching with default settings (debounce 100ms, log-only callback).
//
// Usage:
//
//	l, err := lineship.New(cfg, configwatcher.WithDefaultConfigWatcher())
func WithDefaultConfigWatcher() lineship.Option {
	return WithConfigWatcher(DefaultConfig())
}
