// Package lineship re-exports the embeddable dispatcher API from
// pkg/lineship for convenient import.
//
// Example usage:
//
//	cfg := lineship.Config{
//	    Host:      "collector.internal",
//	    Port:      6514,
//	    Delimiter: "\n",
//	}
//	if err := lineship.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package lineship

import (
	"context"
	"errors"

	"github.com/bft-labs/lineship/pkg/lineship"
)

// Config holds the configuration for a lineship instance.
// Zero fields are completed by SetDefaults during New.
type Config = lineship.Config

// Record is one unit of input data plus attributes.
type Record = lineship.Record

// Result is the terminal report for one record.
type Result = lineship.Result

// Option configures optional behavior of a lineship instance.
type Option = lineship.Option

// Lineship is the embeddable dispatcher instance.
type Lineship = lineship.Lineship

// New creates a new lineship instance. See pkg/lineship for the full API.
func New(cfg Config, opts ...Option) (*Lineship, error) {
	return lineship.New(cfg, opts...)
}

// NewRecord builds a Record, copying the attribute map.
func NewRecord(id lineship.RecordID, payload []byte, attrs map[string]string) Record {
	return lineship.NewRecord(id, payload, attrs)
}

// Run starts an instance and blocks until the context is cancelled or,
// with cfg.Once set, until all accepted work is settled. Outcomes are
// drained internally; use New directly to observe per-record results.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	l, err := lineship.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := l.Start(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		for range l.Outcomes() {
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}

	if err := l.Stop(); err != nil && !errors.Is(err, lineship.ErrNotRunning) {
		return err
	}
	return nil
}
