// Package configwatcher provides config file monitoring for lineship.
// When enabled, it watches the lineship config file for changes and
// invokes a reload callback so the host process can react, typically by
// restarting the instance with the new configuration.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/lineship/pkg/lineship"
)

// Plugin implements config file watching. It monitors the configuration
// file the instance was started from and calls OnChange when the file
// is rewritten.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	debounceDelay time.Duration
	onChange      func(path string)

	// Runtime state
	configPath string
	logger     lineship.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before
	// invoking the callback, coalescing editor write bursts.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnChange is called with the config file path after a change has
	// settled. Called from the watcher goroutine.
	OnChange func(path string)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		onChange:      cfg.OnChange,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize sets up the plugin and starts the config watcher.
func (p *Plugin) Initialize(ctx context.Context, cfg lineship.PluginConfig) error {
	p.mu.Lock()
	p.configPath = cfg.ConfigPath
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.configPath == "" {
		p.logger.Warn("config watcher disabled: no config file path")
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized",
		lineship.LogField{Key: "path", Value: p.configPath})

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// watchLoop watches the config file's directory for changes to the file.
// Watching the directory rather than the file survives the
// rename-over-it pattern most editors and deployment tools use.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("config watcher: failed to create watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.configPath)); err != nil {
		p.logger.Error("config watcher: failed to watch directory")
		return
	}

	target := filepath.Base(p.configPath)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceNotify()

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error")
		}
	}
}

func (p *Plugin) debounceNotify() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, p.notify)
}

func (p *Plugin) notify() {
	p.mu.RLock()
	callback := p.onChange
	path := p.configPath
	logger := p.logger
	p.mu.RUnlock()

	logger.Info("config file changed", lineship.LogField{Key: "path", Value: path})
	if callback != nil {
		callback(path)
	}
}
