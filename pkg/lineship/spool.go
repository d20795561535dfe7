package lineship

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
	"github.com/bft-labs/lineship/pkg/spool"
)

// SpoolConfig configures the optional spool feed: every file dropped
// into Dir becomes one record, and the file is deleted or renamed once
// the record settles.
type SpoolConfig struct {
	// Dir is the directory to watch. Must exist when Start is called.
	Dir string

	// Settle is how long a file must stop changing before it is read.
	Settle time.Duration

	// MaxFileSize caps the size of a spooled file.
	MaxFileSize int64

	// KeepSent renames delivered files to name.sent instead of deleting
	// them.
	KeepSent bool
}

// WithSpool feeds records from a watched spool directory.
//
// Usage:
//
//	l, err := lineship.New(cfg,
//	    lineship.WithSpool(lineship.SpoolConfig{Dir: "/var/spool/lineship"}),
//	)
func WithSpool(cfg SpoolConfig) Option {
	return func(o *options) {
		o.spool = &cfg
	}
}

// spoolRunner pipes spooled files into Submit and finalizes each file
// when its record's outcome arrives.
type spoolRunner struct {
	cfg    SpoolConfig
	logger ports.Logger

	watcher *spool.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[domain.RecordID]spool.File
	seq      uint64
}

func newSpoolRunner(cfg SpoolConfig, logger ports.Logger) *spoolRunner {
	return &spoolRunner{
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[domain.RecordID]spool.File),
	}
}

// start opens the watcher and begins submitting. submit is the
// instance's Submit method.
func (s *spoolRunner) start(ctx context.Context, submit func(Record) error) error {
	w, err := spool.New(spool.Config{
		Dir:         s.cfg.Dir,
		Settle:      s.cfg.Settle,
		MaxFileSize: s.cfg.MaxFileSize,
		KeepSent:    s.cfg.KeepSent,
		Logger:      s.logger,
	})
	if err != nil {
		return err
	}
	s.watcher = w

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.feedLoop(runCtx, submit)
	return nil
}

func (s *spoolRunner) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.wg.Wait()
}

func (s *spoolRunner) feedLoop(ctx context.Context, submit func(Record) error) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-s.watcher.Files():
			if !ok {
				return
			}
			s.submitFile(ctx, f, submit)
		}
	}
}

// submitFile registers the file and hands it to Submit, waiting out a
// full queue instead of dropping the file.
func (s *spoolRunner) submitFile(ctx context.Context, f spool.File, submit func(Record) error) {
	s.mu.Lock()
	s.seq++
	id := domain.RecordID(fmt.Sprintf("spool:%s#%d", f.Name, s.seq))
	s.inflight[id] = f
	s.mu.Unlock()

	rec := domain.NewRecord(id, f.Payload, f.Attributes())
	for {
		err := submit(rec)
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrQueueFull) {
			s.logger.Warn("spool submit failed",
				ports.String("file", f.Name),
				ports.Err(err))
			s.forget(id)
			return
		}
		select {
		case <-ctx.Done():
			s.forget(id)
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// onResult finalizes the spool file behind a settled record. Records
// that did not come from the spool are ignored.
func (s *spoolRunner) onResult(r Result) {
	s.mu.Lock()
	f, ok := s.inflight[r.Record]
	if ok {
		delete(s.inflight, r.Record)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.watcher.Finalize(f, !r.Failed()); err != nil {
		s.logger.Warn("spool finalize failed",
			ports.String("file", f.Name),
			ports.Err(err))
	}
}

func (s *spoolRunner) forget(id domain.RecordID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
