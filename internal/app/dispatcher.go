package app

import (
	"context"
	"strconv"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
	"github.com/bft-labs/lineship/pkg/split"
)

// Dispatcher defaults.
const (
	DefaultMaxPerDispatch  = 32
	DefaultTeardownTimeout = 15 * time.Second
)

// DispatcherConfig contains the per-invocation limits of the dispatcher.
type DispatcherConfig struct {
	// MaxPerDispatch caps how many new records one invocation accepts.
	MaxPerDispatch int

	// TeardownTimeout bounds transport teardown when a connection is
	// discarded after a failure or at shutdown.
	TeardownTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.MaxPerDispatch <= 0 {
		c.MaxPerDispatch = DefaultMaxPerDispatch
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = DefaultTeardownTimeout
	}
	return c
}

// Dispatcher turns intake records into transport sends and terminal
// Results. It owns at most one live transport at a time, created lazily
// on the first record that needs the network; the framing delimiter of
// that connection is the delimiter resolved for the record that
// triggered it.
//
// Dispatch is not safe for concurrent use. The pump serializes
// invocations; only transport completions resolve concurrently.
type Dispatcher struct {
	cfg      DispatcherConfig
	resolver ports.DelimiterResolver
	factory  ports.TransportFactory
	intake   *Intake
	tracker  *Tracker
	logger   ports.Logger

	transport ports.Transport
}

// NewDispatcher wires a dispatcher from its ports.
func NewDispatcher(
	cfg DispatcherConfig,
	resolver ports.DelimiterResolver,
	factory ports.TransportFactory,
	intake *Intake,
	logger ports.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		factory:  factory,
		intake:   intake,
		tracker:  NewTracker(),
		logger:   logger,
	}
}

// Dispatch runs one invocation: reconcile completions left over from
// earlier invocations first, then accept up to MaxPerDispatch new
// records, then collect whatever resolved while this invocation ran.
// Results carry exactly one terminal outcome per record.
func (d *Dispatcher) Dispatch(ctx context.Context) []domain.Result {
	results := d.reconcile()

	for i := 0; i < d.cfg.MaxPerDispatch; i++ {
		if ctx.Err() != nil {
			break
		}
		rec, ok := d.intake.TryNext()
		if !ok {
			break
		}
		results = d.processRecord(ctx, rec, results)
	}

	return append(results, d.reconcile()...)
}

// reconcile collects settled batches and, when any settled with a
// transport failure, discards the current connection. A completion that
// resolves with an error between invocations means the connection is
// dead; keeping it would fail the next record on the stale socket
// instead of giving it a fresh connection attempt.
func (d *Dispatcher) reconcile() []domain.Result {
	results := d.tracker.Reconcile()
	for _, r := range results {
		if r.Failed() {
			d.teardown()
			break
		}
	}
	return results
}

// Pending returns the number of records awaiting an outcome.
func (d *Dispatcher) Pending() int {
	return d.tracker.Pending()
}

// Close settles every accepted record and releases the transport.
// Tracked batches get their real outcomes once teardown resolves their
// completions; records still sitting in the intake were never
// dispatched and fail with ErrShuttingDown.
func (d *Dispatcher) Close(ctx context.Context) []domain.Result {
	d.teardown()

	results := d.tracker.Drain(ctx)
	results = append(results, d.tracker.FailRemaining(domain.ErrShutdownTimeout)...)

	for {
		rec, ok := d.intake.TryNext()
		if !ok {
			break
		}
		results = append(results, failureResult(rec.ID, domain.ErrShuttingDown))
	}
	return results
}

func (d *Dispatcher) processRecord(ctx context.Context, rec domain.Record, results []domain.Result) []domain.Result {
	delimiter, err := d.resolver.Resolve(rec.Attributes)
	if err != nil {
		d.logger.Warn("delimiter resolution failed",
			ports.String("record", string(rec.ID)),
			ports.Err(err))
		return append(results, failureResult(rec.ID, err))
	}

	sc := split.New(rec.Payload, delimiter)
	if sc.Count() == 0 {
		// Nothing to send; an empty record succeeds without touching
		// the network.
		return append(results, domain.Result{Record: rec.ID, Outcome: domain.OutcomeSuccess})
	}

	if err := d.ensureTransport(ctx, delimiter); err != nil {
		d.logger.Warn("connect failed",
			ports.String("record", string(rec.ID)),
			ports.Err(err))
		return append(results, failureResult(rec.ID, err))
	}

	batch := newRecordBatch(rec.ID)
	for sc.Next() {
		completion, err := d.transport.Send(sc.Message())
		if err != nil {
			// The connection is no longer usable. Everything already
			// queued for this record resolves through the transport's
			// failure latch; nothing further is issued for it.
			batch.fail(err)
			d.logger.Warn("send failed mid-record",
				ports.String("record", string(rec.ID)),
				ports.Int("sent", batch.messages),
				ports.Err(err))
			d.teardown()
			break
		}
		batch.add(completion, len(sc.Message()))
	}

	if batch.poll() && d.tracker.Pending() == 0 {
		return append(results, batch.result())
	}
	d.tracker.Push(batch)
	return results
}

// ensureTransport opens the connection on first use. The framing
// delimiter of the connection is fixed here, by the record that
// triggered it.
func (d *Dispatcher) ensureTransport(ctx context.Context, delimiter []byte) error {
	if d.transport != nil {
		return nil
	}
	tr := d.factory(delimiter)
	if err := tr.Open(ctx); err != nil {
		return err
	}
	d.transport = tr
	d.logger.Debug("transport ready",
		ports.String("framing", strconv.Quote(string(delimiter))))
	return nil
}

// teardown discards the current transport, resolving every outstanding
// completion on the way down.
func (d *Dispatcher) teardown() {
	if d.transport == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.TeardownTimeout)
	defer cancel()
	if err := d.transport.Shutdown(ctx); err != nil {
		d.logger.Warn("transport shutdown failed", ports.Err(err))
	}
	d.transport = nil
}

func failureResult(id domain.RecordID, err error) domain.Result {
	return domain.Result{Record: id, Outcome: domain.OutcomeFailure, Err: err}
}
