package spoolcleanup

import "github.com/bft-labs/lineship/pkg/lineship"

// WithSpoolCleanup returns a lineship Option that enables retention
// cleanup of finalized spool files. When enabled, the plugin
// periodically removes aged .sent (and optionally .failed) files from
// the spool directory.
//
// Usage:
//
//	l, err := lineship.New(cfg,
//	    lineship.WithSpool(lineship.SpoolConfig{Dir: dir, KeepSent: true}),
//	    spoolcleanup.WithSpoolCleanup(spoolcleanup.Config{
//	        CheckInterval: time.Hour,
//	        Retention:     24 * time.Hour,
//	    }),
//	)
func WithSpoolCleanup(cfg Config) lineship.Option {
	plugin := New(cfg)
	return lineship.WithPlugin(plugin)
}

// WithDefaultSpoolCleanup returns a lineship Option that enables spool
// cleanup with default settings (sweep hourly, keep files 24h).
//
// Usage:
//
//	l, err := lineship.New(cfg, spoolcleanup.WithDefaultSpoolCleanup())
func WithDefaultSpoolCleanup() lineship.Option {
	return WithSpoolCleanup(DefaultConfig())
}
