package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
)

// fakeCompletion is a manually resolvable ports.Completion.
type fakeCompletion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFakeCompletion() *fakeCompletion {
	return &fakeCompletion{done: make(chan struct{})}
}

func (c *fakeCompletion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *fakeCompletion) Done() <-chan struct{} { return c.done }

func (c *fakeCompletion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func trackedBatch(t *Tracker, id domain.RecordID, n int) (*recordBatch, []*fakeCompletion) {
	b := newRecordBatch(id)
	cs := make([]*fakeCompletion, n)
	for i := range cs {
		cs[i] = newFakeCompletion()
		b.add(cs[i], 1)
	}
	t.Push(b)
	return b, cs
}

func TestTrackerReconcileInOrder(t *testing.T) {
	tr := NewTracker()
	_, first := trackedBatch(tr, "first", 2)
	_, second := trackedBatch(tr, "second", 1)

	// The second record resolving before the first must not let it
	// jump the queue.
	second[0].resolve(nil)
	if got := tr.Reconcile(); len(got) != 0 {
		t.Fatalf("Reconcile() with unresolved head = %d results, want 0", len(got))
	}
	if tr.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", tr.Pending())
	}

	first[0].resolve(nil)
	first[1].resolve(nil)
	results := tr.Reconcile()
	if len(results) != 2 {
		t.Fatalf("Reconcile() = %d results, want 2", len(results))
	}
	if results[0].Record != "first" || results[1].Record != "second" {
		t.Errorf("Reconcile() order = %s, %s; want first, second", results[0].Record, results[1].Record)
	}
	for _, r := range results {
		if r.Failed() {
			t.Errorf("result %s failed: %v", r.Record, r.Err)
		}
	}
	if tr.Pending() != 0 {
		t.Errorf("Pending() after full reconcile = %d, want 0", tr.Pending())
	}
}

func TestTrackerSingleFailureFailsRecord(t *testing.T) {
	tr := NewTracker()
	_, cs := trackedBatch(tr, "rec", 3)

	boom := errors.New("broken pipe")
	cs[0].resolve(nil)
	cs[1].resolve(boom)
	cs[2].resolve(nil)

	results := tr.Reconcile()
	if len(results) != 1 {
		t.Fatalf("Reconcile() = %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Failed() {
		t.Fatal("record with one failed send reported Success")
	}
	if !errors.Is(r.Err, boom) {
		t.Errorf("result error = %v, want wrapped %v", r.Err, boom)
	}
	// The failing message's ordinal is part of the cause.
	if !strings.Contains(r.Err.Error(), "message 1") {
		t.Errorf("result error = %q, want ordinal of failed message", r.Err)
	}
}

func TestTrackerNoOutcomeWhileUnresolved(t *testing.T) {
	tr := NewTracker()
	_, cs := trackedBatch(tr, "rec", 2)

	cs[0].resolve(nil)
	if got := tr.Reconcile(); len(got) != 0 {
		t.Fatalf("Reconcile() with one unresolved send = %d results, want 0", len(got))
	}

	cs[1].resolve(nil)
	if got := tr.Reconcile(); len(got) != 1 {
		t.Fatalf("Reconcile() after full resolution = %d results, want 1", len(got))
	}

	// Never twice.
	if got := tr.Reconcile(); len(got) != 0 {
		t.Errorf("second Reconcile() = %d results, want 0", len(got))
	}
}

func TestTrackerZeroPendingBatch(t *testing.T) {
	tr := NewTracker()
	tr.Push(newRecordBatch("empty"))

	results := tr.Reconcile()
	if len(results) != 1 {
		t.Fatalf("Reconcile() = %d results, want 1", len(results))
	}
	if results[0].Failed() || results[0].Messages != 0 {
		t.Errorf("empty batch result = %+v, want Success with 0 messages", results[0])
	}
}

func TestTrackerDrainWaits(t *testing.T) {
	tr := NewTracker()
	_, cs := trackedBatch(tr, "rec", 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cs[0].resolve(nil)
	}()

	results := tr.Drain(context.Background())
	if len(results) != 1 {
		t.Fatalf("Drain() = %d results, want 1", len(results))
	}
	if results[0].Failed() {
		t.Errorf("Drain() result failed: %v", results[0].Err)
	}
}

func TestTrackerDrainStopsOnContext(t *testing.T) {
	tr := NewTracker()
	trackedBatch(tr, "stuck", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if got := tr.Drain(ctx); len(got) != 0 {
		t.Fatalf("Drain() with expired context = %d results, want 0", len(got))
	}
	if tr.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", tr.Pending())
	}
}

func TestTrackerFailRemaining(t *testing.T) {
	tr := NewTracker()
	_, stuck := trackedBatch(tr, "stuck", 2)
	_, done := trackedBatch(tr, "done", 1)

	stuck[0].resolve(nil)
	// stuck[1] never resolves.
	done[0].resolve(nil)

	results := tr.FailRemaining(domain.ErrShutdownTimeout)
	if len(results) != 2 {
		t.Fatalf("FailRemaining() = %d results, want 2", len(results))
	}
	if !results[0].Failed() || !errors.Is(results[0].Err, domain.ErrShutdownTimeout) {
		t.Errorf("stuck record result = %+v, want forced failure", results[0])
	}
	// A batch whose sends all resolved keeps its real outcome.
	if results[1].Failed() {
		t.Errorf("completed record forced to failure: %+v", results[1])
	}
	if tr.Pending() != 0 {
		t.Errorf("Pending() after FailRemaining = %d, want 0", tr.Pending())
	}
}
