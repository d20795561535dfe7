package ports

import (
	"context"
	"io"

	"github.com/bft-labs/lineship/internal/domain"
)

// RecordSource feeds records into the dispatcher from an external origin
// such as a file list or a watched spool directory.
type RecordSource interface {
	// Next returns the next record. It blocks until a record is available,
	// the source is exhausted (io.EOF), or ctx is done.
	Next(ctx context.Context) (domain.Record, error)

	// Close releases all resources held by the source.
	Close() error
}

// Finalizer is implemented by sources that want to learn each record's
// terminal outcome, for example to delete or rename a spool file after a
// successful send.
type Finalizer interface {
	// Finalize reports the terminal outcome for a record previously
	// returned by Next.
	Finalize(id domain.RecordID, outcome domain.Outcome) error
}

// ErrNoMoreRecords indicates that the source is exhausted.
// Pull loops should stop cleanly when they see it.
var ErrNoMoreRecords = io.EOF
