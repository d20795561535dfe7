package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
)

// Pump defaults.
const (
	DefaultPoll         = 50 * time.Millisecond
	DefaultDrainTimeout = 15 * time.Second
)

// PumpConfig contains configuration for the pump loop.
type PumpConfig struct {
	// Poll is the idle wait between dispatcher invocations. It bounds
	// how long a completion that resolved between invocations waits for
	// its reconcile.
	Poll time.Duration

	// DrainTimeout bounds the final settle when the pump exits.
	DrainTimeout time.Duration

	// BackoffInitial and BackoffMax pace the idle loop while the
	// destination is unreachable.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Once makes Run return once at least one record has settled and the
	// intake and the tracker are both empty, instead of idling for more
	// work. Waiting for the first record closes the startup window where
	// the caller has not submitted anything yet.
	Once bool
}

func (c PumpConfig) withDefaults() PumpConfig {
	if c.Poll <= 0 {
		c.Poll = DefaultPoll
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	return c
}

// ResultSink receives each terminal Result as the pump emits it.
type ResultSink interface {
	OnResult(domain.Result)
}

// Pump drives the dispatcher: one invocation per wakeup, woken by
// Submit kicks or the poll timer. It also owns the cumulative counters
// and persists them after every dispatch that produced results.
type Pump struct {
	cfg       PumpConfig
	disp      *Dispatcher
	intake    *Intake
	statsRepo ports.StatsRepository
	sink      ResultSink
	logger    ports.Logger

	kick chan struct{}

	mu    sync.Mutex
	stats domain.Stats
}

// NewPump creates a pump around a dispatcher.
func NewPump(
	cfg PumpConfig,
	disp *Dispatcher,
	intake *Intake,
	statsRepo ports.StatsRepository,
	sink ResultSink,
	logger ports.Logger,
) *Pump {
	return &Pump{
		cfg:       cfg.withDefaults(),
		disp:      disp,
		intake:    intake,
		statsRepo: statsRepo,
		sink:      sink,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Kick nudges the pump out of its idle wait. Safe from any goroutine;
// extra kicks coalesce.
func (p *Pump) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stats returns a copy of the cumulative counters.
func (p *Pump) Stats() domain.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run executes the dispatch loop until ctx is canceled or, in Once
// mode, until all accepted work is settled. On exit it tears down the
// transport, settles every accepted record, and persists final
// counters.
func (p *Pump) Run(ctx context.Context) error {
	// Load initial counters
	loaded, err := p.statsRepo.Load(ctx)
	if err != nil {
		p.logger.Error("failed to load stats", ports.Err(err))
		// Continue with zero counters
	} else {
		p.mu.Lock()
		p.stats = loaded
		p.mu.Unlock()
	}

	bo := newBackoff(p.cfg.BackoffInitial, p.cfg.BackoffMax)
	settled := false

	for {
		results := p.disp.Dispatch(ctx)
		p.emit(ctx, results)
		if len(results) > 0 {
			settled = true
		}

		if ctx.Err() != nil {
			p.finish()
			return ctx.Err()
		}

		if p.cfg.Once && settled && p.intake.Len() == 0 && p.disp.Pending() == 0 {
			p.finish()
			return nil
		}

		delay := p.cfg.Poll
		if connectStorm(results) {
			delay = bo.Delay()
			p.logger.Debug("destination unreachable, backing off",
				ports.Duration("delay", delay))
		} else if len(results) > 0 {
			bo.Reset()
		}

		select {
		case <-ctx.Done():
			p.finish()
			return ctx.Err()
		case <-p.kick:
		case <-time.After(delay):
		}
	}
}

// emit folds results into the counters, forwards them to the sink, and
// persists the counters.
func (p *Pump) emit(ctx context.Context, results []domain.Result) {
	if len(results) == 0 {
		return
	}

	p.mu.Lock()
	for _, r := range results {
		p.stats.Observe(r)
	}
	stats := p.stats
	p.mu.Unlock()

	success, failure := 0, 0
	for _, r := range results {
		if r.Failed() {
			failure++
			p.logger.Debug("record failed",
				ports.String("record", string(r.Record)),
				ports.Err(r.Err))
		} else {
			success++
			p.logger.Debug("record sent",
				ports.String("record", string(r.Record)),
				ports.Int("messages", r.Messages),
				ports.Int("bytes", r.Bytes))
		}
		if p.sink != nil {
			p.sink.OnResult(r)
		}
	}

	p.logger.Info("dispatch settled",
		ports.Int("success", success),
		ports.Int("failure", failure),
		ports.Uint64("total_records", stats.Records()))

	if err := p.statsRepo.Save(ctx, stats); err != nil {
		p.logger.Error("failed to save stats", ports.Err(err))
	}
}

// finish settles everything accepted but not yet reported.
func (p *Pump) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
	defer cancel()

	results := p.disp.Close(ctx)
	p.emit(ctx, results)

	p.mu.Lock()
	total := p.stats.Records()
	p.mu.Unlock()
	p.logger.Info("pump stopped", ports.Uint64("total_records", total))
}

// connectStorm reports whether every result in the batch is a failed
// connection attempt, meaning the destination is down rather than any
// one record being bad.
func connectStorm(results []domain.Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Failed() || !domain.IsConnectError(r.Err) {
			return false
		}
	}
	return true
}
