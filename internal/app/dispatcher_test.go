package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
)

// fakeTransport is a scriptable ports.Transport.
type fakeTransport struct {
	openErr      error         // Open fails with a ConnectError wrapping this
	sendErrAt    int           // this send and later ones fail synchronously (1-based); 0 = never
	auto         bool          // resolve completions as soon as Send returns
	resolveDelay time.Duration // resolve completions this long after Send

	opened      bool
	shutdowns   int
	sends       []string
	completions []*fakeCompletion
}

func (t *fakeTransport) Open(ctx context.Context) error {
	if t.openErr != nil {
		return &domain.ConnectError{Addr: "fake:9", Err: t.openErr}
	}
	t.opened = true
	return nil
}

func (t *fakeTransport) Send(msg []byte) (ports.Completion, error) {
	if t.sendErrAt > 0 && len(t.sends)+1 >= t.sendErrAt {
		return nil, &domain.SendError{Err: errors.New("injected send failure")}
	}
	t.sends = append(t.sends, string(msg))
	c := newFakeCompletion()
	t.completions = append(t.completions, c)
	if t.auto {
		c.resolve(nil)
	} else if t.resolveDelay > 0 {
		time.AfterFunc(t.resolveDelay, func() { c.resolve(nil) })
	}
	return c, nil
}

func (t *fakeTransport) Shutdown(ctx context.Context) error {
	t.shutdowns++
	// The real transports resolve everything still pending on the way
	// down; queued writes drain successfully.
	for _, c := range t.completions {
		c.resolve(nil)
	}
	return nil
}

// fakeFactory builds fakeTransports and records the framing delimiter
// of every connection it was asked for.
type fakeFactory struct {
	openErr      error
	sendErrAt    int
	auto         bool
	resolveDelay time.Duration

	framings   []string
	transports []*fakeTransport
}

func (f *fakeFactory) factory(framing []byte) ports.Transport {
	t := &fakeTransport{
		openErr:      f.openErr,
		sendErrAt:    f.sendErrAt,
		auto:         f.auto,
		resolveDelay: f.resolveDelay,
	}
	f.framings = append(f.framings, string(framing))
	f.transports = append(f.transports, t)
	return t
}

func staticResolver(delim string) ports.DelimiterResolver {
	return ports.ResolverFunc(func(attrs map[string]string) ([]byte, error) {
		return []byte(delim), nil
	})
}

func newTestDispatcher(t *testing.T, f *fakeFactory, resolver ports.DelimiterResolver, queued ...domain.Record) (*Dispatcher, *Intake) {
	t.Helper()
	intake := NewIntake(16)
	for _, rec := range queued {
		if err := intake.Put(rec); err != nil {
			t.Fatalf("Put(%s) error = %v", rec.ID, err)
		}
	}
	d := NewDispatcher(DispatcherConfig{}, resolver, f.factory, intake, &mockLogger{})
	return d, intake
}

func TestDispatchSplitsAndSends(t *testing.T) {
	f := &fakeFactory{auto: true}
	d, _ := newTestDispatcher(t, f, staticResolver("DD"),
		domain.NewRecord("r1", []byte("This is message 1DDThis is message 2DDThis is message 3DD"), nil))

	results := d.Dispatch(context.Background())
	if len(results) != 1 {
		t.Fatalf("Dispatch() = %d results, want 1", len(results))
	}
	r := results[0]
	if r.Record != "r1" || r.Failed() {
		t.Fatalf("result = %+v, want r1 Success", r)
	}
	if r.Messages != 3 {
		t.Errorf("Messages = %d, want 3", r.Messages)
	}

	tr := f.transports[0]
	want := []string{"This is message 1", "This is message 2", "This is message 3"}
	if len(tr.sends) != len(want) {
		t.Fatalf("transport got %d messages %q, want %d", len(tr.sends), tr.sends, len(want))
	}
	for i := range want {
		if tr.sends[i] != want[i] {
			t.Errorf("send[%d] = %q, want %q", i, tr.sends[i], want[i])
		}
	}
}

// A record whose completions resolve after the invocation returns is
// completed by the reconcile step of a later invocation, not lost and
// not reported early.
func TestDispatchDefersOutcomeAcrossInvocations(t *testing.T) {
	f := &fakeFactory{}
	d, _ := newTestDispatcher(t, f, staticResolver("\n"),
		domain.NewRecord("r1", []byte("alpha\nbeta"), nil))

	if results := d.Dispatch(context.Background()); len(results) != 0 {
		t.Fatalf("first Dispatch() = %d results, want 0 while sends are in flight", len(results))
	}
	if d.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", d.Pending())
	}

	// An invocation with nothing new and nothing resolved reports nothing.
	if results := d.Dispatch(context.Background()); len(results) != 0 {
		t.Fatalf("idle Dispatch() = %d results, want 0", len(results))
	}

	for _, c := range f.transports[0].completions {
		c.resolve(nil)
	}

	results := d.Dispatch(context.Background())
	if len(results) != 1 {
		t.Fatalf("Dispatch() after resolution = %d results, want 1", len(results))
	}
	if results[0].Record != "r1" || results[0].Failed() || results[0].Messages != 2 {
		t.Errorf("result = %+v, want r1 Success with 2 messages", results[0])
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}
}

func TestDispatchEmptyPayloadSucceedsWithoutNetwork(t *testing.T) {
	f := &fakeFactory{auto: true}
	d, _ := newTestDispatcher(t, f, staticResolver("\n"),
		domain.NewRecord("empty", nil, nil))

	results := d.Dispatch(context.Background())
	if len(results) != 1 {
		t.Fatalf("Dispatch() = %d results, want 1", len(results))
	}
	if results[0].Failed() || results[0].Messages != 0 {
		t.Errorf("result = %+v, want Success with 0 messages", results[0])
	}
	if len(f.transports) != 0 {
		t.Errorf("factory called %d times, want 0 for empty payload", len(f.transports))
	}
}

func TestDispatchDelimiterResolutionFailure(t *testing.T) {
	f := &fakeFactory{auto: true}
	bad := ports.ResolverFunc(func(attrs map[string]string) ([]byte, error) {
		return nil, &domain.ConfigError{Err: domain.ErrEmptyDelimiter}
	})
	d, _ := newTestDispatcher(t, f, bad,
		domain.NewRecord("r1", []byte("payload"), nil))

	results := d.Dispatch(context.Background())
	if len(results) != 1 {
		t.Fatalf("Dispatch() = %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Failed() || !errors.Is(r.Err, domain.ErrEmptyDelimiter) {
		t.Errorf("result = %+v, want Failure wrapping ErrEmptyDelimiter", r)
	}
	if len(f.transports) != 0 {
		t.Errorf("factory called %d times, want 0 after resolution failure", len(f.transports))
	}
}

func TestDispatchConnectFailureFailsEachRecord(t *testing.T) {
	f := &fakeFactory{openErr: errors.New("connection refused")}
	d, _ := newTestDispatcher(t, f, staticResolver("\n"),
		domain.NewRecord("r1", []byte("one"), nil),
		domain.NewRecord("r2", []byte("two"), nil))

	results := d.Dispatch(context.Background())
	if len(results) != 2 {
		t.Fatalf("Dispatch() = %d results, want 2", len(results))
	}
	for _, r := range results {
		if !r.Failed() {
			t.Errorf("result %s = Success, want Failure", r.Record)
		}
		if !domain.IsConnectError(r.Err) {
			t.Errorf("result %s error = %v, want ConnectError", r.Record, r.Err)
		}
		if r.Messages != 0 {
			t.Errorf("result %s Messages = %d, want 0 (no pending sends created)", r.Record, r.Messages)
		}
	}
	// Each record attempts a fresh connection; no retries in between.
	if len(f.transports) != 2 {
		t.Errorf("factory called %d times, want 2", len(f.transports))
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}
}

func TestDispatchMidRecordSendFailure(t *testing.T) {
	f := &fakeFactory{auto: true, sendErrAt: 2}
	d, _ := newTestDispatcher(t, f, staticResolver("DD"),
		domain.NewRecord("r1", []byte("aDDbDDc"), nil))

	results := d.Dispatch(context.Background())
	if len(results) != 1 {
		t.Fatalf("Dispatch() = %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Failed() {
		t.Fatal("partially delivered record reported Success")
	}
	if !domain.IsSendError(r.Err) {
		t.Errorf("result error = %v, want SendError", r.Err)
	}
	if r.Messages != 1 {
		t.Errorf("Messages = %d, want 1 (issuing stopped at the failure)", r.Messages)
	}

	tr := f.transports[0]
	if len(tr.sends) != 1 || tr.sends[0] != "a" {
		t.Errorf("transport got %q, want only %q", tr.sends, "a")
	}
	// The broken connection is discarded.
	if tr.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", tr.shutdowns)
	}

	// The next record dials a fresh connection.
	f.sendErrAt = 0
	d.intake.Put(domain.NewRecord("r2", []byte("ok"), nil))
	results = d.Dispatch(context.Background())
	if len(results) != 1 || results[0].Failed() {
		t.Fatalf("Dispatch() after teardown = %+v, want r2 Success", results)
	}
	if len(f.transports) != 2 {
		t.Errorf("factory called %d times, want 2 (reconnect after failure)", len(f.transports))
	}
}

// Two records in one invocation, with the connection becoming unusable
// after the first message of record 2: record 1 settles Success, record
// 2 settles Failure, never a mixed outcome for either.
func TestDispatchSecondRecordFailureLeavesFirstIntact(t *testing.T) {
	// r1 carries one message (send 1), r2 carries two (sends 2 and 3);
	// the connection dies on r2's second message.
	f := &fakeFactory{auto: true, sendErrAt: 3}
	d, _ := newTestDispatcher(t, f, staticResolver("\n"),
		domain.NewRecord("r1", []byte("one"), nil),
		domain.NewRecord("r2", []byte("a\nb"), nil))

	results := d.Dispatch(context.Background())
	if len(results) != 2 {
		t.Fatalf("Dispatch() = %d results, want 2", len(results))
	}
	byID := map[domain.RecordID]domain.Result{}
	for _, r := range results {
		byID[r.Record] = r
	}
	if r := byID["r1"]; r.Failed() || r.Messages != 1 {
		t.Errorf("r1 = %+v, want Success with 1 message", r)
	}
	if r := byID["r2"]; !r.Failed() || !domain.IsSendError(r.Err) {
		t.Errorf("r2 = %+v, want Failure with SendError", r)
	}

	// The dead connection is discarded; r2's accepted first message went
	// out before the failure.
	tr := f.transports[0]
	if len(tr.sends) != 2 || tr.sends[0] != "one" || tr.sends[1] != "a" {
		t.Errorf("transport got %q, want [one a]", tr.sends)
	}
	if tr.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", tr.shutdowns)
	}
}

// A completion that resolves with a transport failure between
// invocations gets the same handling as a synchronous send error: the
// stale connection is discarded before new records are accepted, so the
// next record dials fresh instead of failing on the dead socket.
func TestDispatchReconciledFailureDiscardsConnection(t *testing.T) {
	f := &fakeFactory{}
	d, intake := newTestDispatcher(t, f, staticResolver("\n"),
		domain.NewRecord("r1", []byte("one"), nil))

	if results := d.Dispatch(context.Background()); len(results) != 0 {
		t.Fatalf("first Dispatch() = %d results, want 0 while the send is in flight", len(results))
	}

	// The connection dies after the invocation returned: the pending
	// send resolves with a failure, and the stream latches so any
	// further send on it would fail synchronously.
	tr := f.transports[0]
	tr.completions[0].resolve(&domain.SendError{Err: errors.New("broken pipe")})
	tr.sendErrAt = 1

	f.auto = true
	intake.Put(domain.NewRecord("r2", []byte("two"), nil))

	results := d.Dispatch(context.Background())
	if len(results) != 2 {
		t.Fatalf("Dispatch() = %d results, want 2", len(results))
	}
	byID := map[domain.RecordID]domain.Result{}
	for _, r := range results {
		byID[r.Record] = r
	}
	if r := byID["r1"]; !r.Failed() || !domain.IsSendError(r.Err) {
		t.Errorf("r1 = %+v, want Failure with SendError", r)
	}
	if r := byID["r2"]; r.Failed() {
		t.Errorf("r2 = %+v, want Success on a fresh connection", r)
	}

	if tr.shutdowns != 1 {
		t.Errorf("stale transport shutdowns = %d, want 1", tr.shutdowns)
	}
	if len(f.transports) != 2 {
		t.Fatalf("factory called %d times, want 2 (fresh connection for r2)", len(f.transports))
	}
	if got := f.transports[1].sends; len(got) != 1 || got[0] != "two" {
		t.Errorf("fresh transport got %q, want [two]", got)
	}
}

func TestDispatchFramingFixedByTriggeringRecord(t *testing.T) {
	// The delimiter comes from each record's attributes; the connection
	// keeps the framing of the record that opened it.
	byAttr := ports.ResolverFunc(func(attrs map[string]string) ([]byte, error) {
		d := attrs["delim"]
		if d == "" {
			return nil, &domain.ConfigError{Err: domain.ErrEmptyDelimiter}
		}
		return []byte(d), nil
	})
	f := &fakeFactory{auto: true}
	d, _ := newTestDispatcher(t, f, byAttr,
		domain.NewRecord("r1", []byte("xAAy"), map[string]string{"delim": "AA"}),
		domain.NewRecord("r2", []byte("uBBv"), map[string]string{"delim": "BB"}))

	results := d.Dispatch(context.Background())
	if len(results) != 2 {
		t.Fatalf("Dispatch() = %d results, want 2", len(results))
	}
	if len(f.transports) != 1 {
		t.Fatalf("factory called %d times, want 1 (connection reused)", len(f.transports))
	}
	if f.framings[0] != "AA" {
		t.Errorf("connection framing = %q, want %q from the record that opened it", f.framings[0], "AA")
	}
	// Both records split on their own delimiter.
	want := []string{"x", "y", "u", "v"}
	tr := f.transports[0]
	if len(tr.sends) != len(want) {
		t.Fatalf("transport got %q, want %q", tr.sends, want)
	}
	for i := range want {
		if tr.sends[i] != want[i] {
			t.Errorf("send[%d] = %q, want %q", i, tr.sends[i], want[i])
		}
	}
}

func TestDispatchRespectsMaxPerDispatch(t *testing.T) {
	f := &fakeFactory{auto: true}
	intake := NewIntake(16)
	for _, id := range []string{"r1", "r2", "r3"} {
		intake.Put(domain.NewRecord(domain.RecordID(id), []byte(id), nil))
	}
	d := NewDispatcher(DispatcherConfig{MaxPerDispatch: 2}, staticResolver("\n"), f.factory, intake, &mockLogger{})

	results := d.Dispatch(context.Background())
	if len(results) != 2 {
		t.Fatalf("Dispatch() = %d results, want 2 (MaxPerDispatch)", len(results))
	}
	if results[0].Record != "r1" || results[1].Record != "r2" {
		t.Errorf("results = %s, %s; want r1, r2 in order", results[0].Record, results[1].Record)
	}
	if intake.Len() != 1 {
		t.Errorf("intake.Len() = %d, want 1", intake.Len())
	}

	results = d.Dispatch(context.Background())
	if len(results) != 1 || results[0].Record != "r3" {
		t.Fatalf("second Dispatch() = %+v, want r3", results)
	}
}

func TestCloseSettlesEverything(t *testing.T) {
	f := &fakeFactory{}
	d, intake := newTestDispatcher(t, f, staticResolver("\n"),
		domain.NewRecord("inflight", []byte("a\nb"), nil))

	// First invocation leaves two sends in flight.
	if results := d.Dispatch(context.Background()); len(results) != 0 {
		t.Fatalf("Dispatch() = %d results, want 0", len(results))
	}

	// Two more records never get dispatched.
	intake.Put(domain.NewRecord("queued1", []byte("x"), nil))
	intake.Put(domain.NewRecord("queued2", []byte("y"), nil))

	results := d.Close(context.Background())
	if len(results) != 3 {
		t.Fatalf("Close() = %d results, want 3", len(results))
	}

	// Teardown resolved the in-flight sends; the record completes with
	// its real outcome.
	if results[0].Record != "inflight" || results[0].Failed() {
		t.Errorf("results[0] = %+v, want inflight Success", results[0])
	}
	for i, want := range []domain.RecordID{"queued1", "queued2"} {
		r := results[i+1]
		if r.Record != want || !r.Failed() || !errors.Is(r.Err, domain.ErrShuttingDown) {
			t.Errorf("results[%d] = %+v, want %s failed with ErrShuttingDown", i+1, r, want)
		}
	}

	if f.transports[0].shutdowns != 1 {
		t.Errorf("transport shutdowns = %d, want 1", f.transports[0].shutdowns)
	}
}
