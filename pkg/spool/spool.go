// Package spool feeds records from a watched directory.
//
// Every regular file dropped into the spool directory becomes one
// record: the file contents are the payload, and the file's name, path,
// and size travel as attributes. After the record settles, Finalize
// either deletes the file or marks it with a suffix, so a file is never
// dispatched twice.
package spool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/lineship/pkg/log"
)

// Suffixes marking finalized spool files. Files carrying them are
// ignored by the watcher.
const (
	SentSuffix   = ".sent"
	FailedSuffix = ".failed"
)

// Default configuration values.
const (
	DefaultSettle      = 100 * time.Millisecond
	DefaultMaxFileSize = 8 << 20
	DefaultBufferSize  = 64
)

// Config configures a spool Watcher.
type Config struct {
	// Dir is the directory to watch. Must exist.
	Dir string

	// Settle is how long a file must stop changing before it is read.
	// Protects against picking up half-written files.
	Settle time.Duration

	// MaxFileSize caps the size of a spooled file; larger files are
	// skipped with a warning.
	MaxFileSize int64

	// KeepSent renames delivered files to name.sent instead of deleting
	// them.
	KeepSent bool

	// BufferSize is the capacity of the Files channel.
	BufferSize int

	// Logger receives watcher diagnostics. Defaults to a no-op logger.
	Logger log.Logger
}

func (c Config) withDefaults() Config {
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}
	return c
}

// File is one spooled file, read fully into memory.
type File struct {
	// Path is the location of the file inside the spool directory.
	Path string

	// Name is the file's base name.
	Name string

	// Size is the payload length in bytes.
	Size int64

	// Payload is the file contents.
	Payload []byte
}

// Attributes returns the record attributes a spooled file carries.
func (f File) Attributes() map[string]string {
	return map[string]string{
		"file.name": f.Name,
		"file.path": f.Path,
		"file.size": strconv.FormatInt(f.Size, 10),
	}
}

// Watcher turns directory activity into Files. One delivery per file;
// redelivery only after the file is finalized and written again.
type Watcher struct {
	cfg Config
	fsw *fsnotify.Watcher

	files   chan File
	initial []string
	quit    chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}

	closeOnce sync.Once
	closeErr  error
}

// New opens the directory, queues any files already present, and starts
// watching for new ones.
func New(cfg Config) (*Watcher, error) {
	cfg = cfg.withDefaults()

	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("spool directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spool directory: %s is not a directory", cfg.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		files:    make(chan File, cfg.BufferSize),
		quit:     make(chan struct{}),
		inflight: make(map[string]struct{}),
	}

	// Files already in the directory are spooled work too.
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("scan %s: %w", cfg.Dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !eligible(e.Name()) {
			continue
		}
		w.initial = append(w.initial, filepath.Join(cfg.Dir, e.Name()))
	}

	w.wg.Add(1)
	go w.watchLoop()

	return w, nil
}

// Files returns the channel delivered files arrive on.
func (w *Watcher) Files() <-chan File {
	return w.files
}

/// Finalize disposes of a delivered file: sent files are deleted (or
// renamed to name.sent when KeepSent is set), failed ones renamed to
// name.failed so an operator can inspect and requeue them.
func (w *Watcher) Finalize(f File, sent bool) error {
	var err error
	switch {
	case sent && !w.cfg.KeepSent:
		err = os.Remove(f.Path)
	case sent:
		err = os.Rename(f.Path, f.Path+SentSuffix)
	default:
		err = os.Rename(f.Path, f.Path+FailedSuffix)
	}

	// Only after the file is out of the way may new events trigger a
	// fresh delivery for this path.
	w.mu.Lock()
	delete(w.inflight, f.Path)
	w.mu.Unlock()

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("finalize %s: %w", f.Name, err)
	}
	return nil
}

// Close stops the watcher and closes the Files channel. Files delivered
// but not finalized stay in the directory untouched.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
		w.closeErr = w.fsw.Close()
		w.wg.Wait()
		close(w.files)
	})
	return w.closeErr
}

// watchLoop is the only goroutine that reads events and delivers files.
// A pending file is delivered once no event has touched it for the
// settle period.
func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	pending := map[string]time.Time{}
	now := time.Now()
	for _, path := range w.initial {
		pending[path] = now.Add(w.cfg.Settle)
	}

	ticker := time.NewTicker(w.settlePoll())
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !eligible(filepath.Base(event.Name)) {
				continue
			}
			pending[event.Name] = time.Now().Add(w.cfg.Settle)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Error("spool watcher error", log.Err(err))

		case now := <-ticker.C:
			for path, due := range pending {
				if now.Before(due) {
					continue
				}
				delete(pending, path)
				if !w.deliver(path) {
					return
				}
			}
		}
	}
}

func (w *Watcher) settlePoll() time.Duration {
	poll := w.cfg.Settle / 2
	if poll < 10*time.Millisecond {
		poll = 10 * time.Millisecond
	}
	return poll
}

// deliver reads a settled file and hands it to the channel. Reports
// false when shutdown interrupted the delivery.
func (w *Watcher) deliver(path string) bool {
	w.mu.Lock()
	_, busy := w.inflight[path]
	w.mu.Unlock()
	if busy {
		return true
	}

	f, ok := w.read(path)
	if !ok {
		return true
	}

	w.mu.Lock()
	w.inflight[path] = struct{}{}
	w.mu.Unlock()

	select {
	case w.files <- f:
		return true
	case <-w.quit:
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
		return false
	}
}

func (w *Watcher) read(path string) (File, bool) {
	info, err := os.Stat(path)
	if err != nil {
		// Removed while settling.
		return File{}, false
	}
	if info.IsDir() {
		return File{}, false
	}
	if info.Size() > w.cfg.MaxFileSize {
		w.cfg.Logger.Warn("spool file too large, skipping",
			log.String("file", filepath.Base(path)),
			log.Uint64("size", uint64(info.Size())))
		return File{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.cfg.Logger.Error("spool read failed",
			log.String("file", filepath.Base(path)),
			log.Err(err))
		return File{}, false
	}

	return File{
		Path:    path,
		Name:    filepath.Base(path),
		Size:    int64(len(data)),
		Payload: data,
	}, true
}

// eligible reports whether a file name is spooled work rather than a
// finalized or hidden file.
func eligible(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.HasSuffix(name, SentSuffix) || strings.HasSuffix(name, FailedSuffix) {
		return false
	}
	return true
}
