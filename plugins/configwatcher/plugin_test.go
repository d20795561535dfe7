package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/lineship/pkg/lineship"
	"github.com/bft-labs/lineship/pkg/log"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestPluginName(t *testing.T) {
	p := New(DefaultConfig())
	if p.Name() != "configwatcher" {
		t.Errorf("Name() = %q, want configwatcher", p.Name())
	}
}

func TestInitializeWithoutConfigPath(t *testing.T) {
	p := New(DefaultConfig())

	err := p.Initialize(context.Background(), lineship.PluginConfig{
		Logger: log.NewNoopLogger(),
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestChangeTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `host = "a"`)

	var mu sync.Mutex
	var changes []string
	p := New(Config{
		DebounceDelay: 20 * time.Millisecond,
		OnChange: func(p string) {
			mu.Lock()
			changes = append(changes, p)
			mu.Unlock()
		},
	})

	if err := p.Initialize(context.Background(), lineship.PluginConfig{
		ConfigPath: path,
		Logger:     log.NewNoopLogger(),
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer p.Shutdown(context.Background())

	// Let the watcher attach before touching the file.
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, `host = "b"`)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(changes)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("callback never fired after config change")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if changes[0] != path {
		t.Errorf("callback path = %q, want %q", changes[0], path)
	}
}

func TestDebounceCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `host = "a"`)

	var mu sync.Mutex
	count := 0
	p := New(Config{
		DebounceDelay: 100 * time.Millisecond,
		OnChange: func(string) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})

	if err := p.Initialize(context.Background(), lineship.PluginConfig{
		ConfigPath: path,
		Logger:     log.NewNoopLogger(),
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer p.Shutdown(context.Background())

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		writeConfig(t, path, `host = "burst"`)
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("callback fired %d times for one burst, want 1", count)
	}
}
