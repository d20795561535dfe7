package app

import "github.com/bft-labs/lineship/internal/domain"

// Intake is the bounded hand-off between Submit and the dispatcher.
// Put never blocks; a full queue is an error the caller sees
// immediately, which is the only back-pressure Submit exerts.
type Intake struct {
	ch chan domain.Record
}

// NewIntake creates an intake queue with the given capacity.
func NewIntake(size int) *Intake {
	if size <= 0 {
		size = 1
	}
	return &Intake{ch: make(chan domain.Record, size)}
}

// Put enqueues a record. Returns domain.ErrQueueFull when the queue is
// at capacity.
func (q *Intake) Put(rec domain.Record) error {
	select {
	case q.ch <- rec:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// TryNext pops the next record without blocking.
func (q *Intake) TryNext() (domain.Record, bool) {
	select {
	case rec := <-q.ch:
		return rec, true
	default:
		return domain.Record{}, false
	}
}

// Len returns the number of queued records.
func (q *Intake) Len() int {
	return len(q.ch)
}
