package app

import (
	"context"
	"fmt"

	"github.com/eapache/queue"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
)

// pendingSend is one in-flight message transmission: the transport's
// completion handle plus the message's ordinal within its record.
type pendingSend struct {
	completion ports.Completion
	ordinal    int
	bytes      int
}

// recordBatch gathers everything the tracker knows about one record:
// its pending sends, the first failure observed, and the counters that
// end up in the Result. A batch is complete when every pending send has
// resolved; a batch with no pendings is complete from the start.
type recordBatch struct {
	id       domain.RecordID
	pendings []pendingSend
	resolved int
	failure  error
	messages int
	bytes    int
}

func newRecordBatch(id domain.RecordID) *recordBatch {
	return &recordBatch{id: id}
}

// add registers one pending send.
func (b *recordBatch) add(c ports.Completion, size int) {
	b.pendings = append(b.pendings, pendingSend{
		completion: c,
		ordinal:    len(b.pendings),
		bytes:      size,
	})
	b.messages++
	b.bytes += size
}

// fail latches the batch's first failure.
func (b *recordBatch) fail(err error) {
	if b.failure == nil {
		b.failure = err
	}
}

// poll advances over resolved completions without blocking. It returns
// true once every pending send has resolved.
func (b *recordBatch) poll() bool {
	for b.resolved < len(b.pendings) {
		p := b.pendings[b.resolved]
		select {
		case <-p.completion.Done():
			b.observe(p)
		default:
			return false
		}
	}
	return true
}

// wait blocks until every pending send has resolved or ctx is done.
func (b *recordBatch) wait(ctx context.Context) bool {
	for b.resolved < len(b.pendings) {
		p := b.pendings[b.resolved]
		select {
		case <-p.completion.Done():
			b.observe(p)
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// observe consumes one resolved completion, latching the first failure
// with the ordinal of the message that caused it.
func (b *recordBatch) observe(p pendingSend) {
	if err := p.completion.Err(); err != nil {
		b.fail(fmt.Errorf("message %d: %w", p.ordinal, err))
	}
	b.resolved++
}

// complete reports whether all pendings have resolved.
func (b *recordBatch) complete() bool {
	return b.resolved == len(b.pendings)
}

// result builds the terminal Result for the batch.
func (b *recordBatch) result() domain.Result {
	r := domain.Result{
		Record:   b.id,
		Outcome:  domain.OutcomeSuccess,
		Messages: b.messages,
		Bytes:    b.bytes,
	}
	if b.failure != nil {
		r.Outcome = domain.OutcomeFailure
		r.Err = b.failure
	}
	return r
}

// Tracker retains record batches across dispatcher invocations, in
// submission order. Batches leave the tracker only through Reconcile,
// Drain, or FailRemaining, each of which emits exactly one Result per
// batch; a record is never reported twice and never reported while a
// pending send is unresolved.
//
// The tracker pops from the front only. With one ordered transport the
// front batch always resolves no later than anything behind it, so the
// front-only discipline cannot starve a batch, and it keeps outcomes in
// submission order.
type Tracker struct {
	q *queue.Queue
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{q: queue.New()}
}

// Push adds a batch to the tail.
func (t *Tracker) Push(b *recordBatch) {
	t.q.Add(b)
}

// Pending returns the number of records still awaiting an outcome.
func (t *Tracker) Pending() int {
	return t.q.Length()
}

// Reconcile pops every complete batch from the front of the queue
// without blocking and returns their Results in submission order.
func (t *Tracker) Reconcile() []domain.Result {
	var out []domain.Result
	for t.q.Length() > 0 {
		b := t.q.Peek().(*recordBatch)
		if !b.poll() {
			break
		}
		t.q.Remove()
		out = append(out, b.result())
	}
	return out
}

// Drain waits for every batch to resolve and returns all Results. It
// stops early when ctx is done; FailRemaining then covers the rest.
func (t *Tracker) Drain(ctx context.Context) []domain.Result {
	var out []domain.Result
	for t.q.Length() > 0 {
		b := t.q.Peek().(*recordBatch)
		if !b.wait(ctx) {
			break
		}
		t.q.Remove()
		out = append(out, b.result())
	}
	return out
}

// FailRemaining force-completes every remaining batch. Batches whose
// sends all resolved keep their real outcome; anything still unresolved
// fails with err. The tracker is empty afterwards.
func (t *Tracker) FailRemaining(err error) []domain.Result {
	var out []domain.Result
	for t.q.Length() > 0 {
		b := t.q.Remove().(*recordBatch)
		if !b.poll() {
			b.fail(err)
		}
		out = append(out, b.result())
	}
	return out
}
