// Package spoolcleanup provides retention cleanup of finalized spool
// files for lineship. When enabled, it periodically removes .sent and
// .failed files older than the configured retention from the spool
// directory, keeping disk usage bounded.
package spoolcleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/lineship/pkg/lineship"
	"github.com/bft-labs/lineship/pkg/spool"
)

// Plugin implements spool retention cleanup.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	checkInterval time.Duration
	retention     time.Duration
	removeFailed  bool

	// Runtime state
	spoolDir string
	logger   lineship.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Config holds configuration options for the spool cleanup plugin.
type Config struct {
	// CheckInterval is how often to sweep the spool directory.
	// Default: 1 hour
	CheckInterval time.Duration

	// Retention is how long finalized files are kept before removal.
	// Default: 24 hours
	Retention time.Duration

	// RemoveFailed also removes .failed files once they age out.
	// Default: false; failed files stay for operator inspection.
	RemoveFailed bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Hour,
		Retention:     24 * time.Hour,
	}
}

// New creates a new spool cleanup plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &Plugin{
		checkInterval: cfg.CheckInterval,
		retention:     cfg.Retention,
		removeFailed:  cfg.RemoveFailed,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "spoolcleanup"
}

// Initialize sets up the plugin and starts the cleanup loop.
func (p *Plugin) Initialize(ctx context.Context, cfg lineship.PluginConfig) error {
	p.mu.Lock()
	p.spoolDir = cfg.SpoolDir
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.spoolDir == "" {
		p.logger.Warn("spool cleanup disabled: no spool directory configured")
		return nil
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("spool cleanup plugin initialized",
		lineship.LogField{Key: "dir", Value: p.spoolDir})

	p.wg.Add(1)
	go p.cleanupLoop(cleanupCtx)

	return nil
}

// Shutdown stops the cleanup loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	// Run immediately on startup
	p.sweep(ctx)

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep removes finalized files past retention. Failures on individual
// files are logged and skipped so one stubborn file cannot stall the
// sweep.
func (p *Plugin) sweep(ctx context.Context) {
	p.mu.RLock()
	dir := p.spoolDir
	p.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		p.logger.Error("spool cleanup: list failed",
			lineship.LogField{Key: "error", Value: err})
		return
	}

	cutoff := time.Now().Add(-p.retention)
	removed := 0

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() || !p.finalized(e.Name()) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			p.logger.Warn("spool cleanup: remove failed",
				lineship.LogField{Key: "file", Value: e.Name()},
				lineship.LogField{Key: "error", Value: err})
			continue
		}
		removed++
	}

	if removed > 0 {
		p.logger.Info("spool cleanup completed",
			lineship.LogField{Key: "removed", Value: removed})
	}
}

// finalized reports whether a file name marks a settled spool file this
// plugin may remove.
func (p *Plugin) finalized(name string) bool {
	if strings.HasSuffix(name, spool.SentSuffix) {
		return true
	}
	return p.removeFailed && strings.HasSuffix(name, spool.FailedSuffix)
}
