package lineship

import (
	"context"
	"errors"
	"sync"

	"github.com/bft-labs/lineship/internal/adapters/fs"
	"github.com/bft-labs/lineship/internal/adapters/wire"
	"github.com/bft-labs/lineship/internal/app"
	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
	"github.com/bft-labs/lineship/pkg/delim"
)

// Re-exported domain types. Users can also import internal packages'
// public counterparts where they exist.
type (
	// RecordID identifies one submission.
	RecordID = domain.RecordID

	// Record is one unit of input data plus attributes.
	Record = domain.Record

	// Result is the terminal report for one record.
	Result = domain.Result

	// Outcome is the terminal verdict for one record.
	Outcome = domain.Outcome
)

// Outcome values.
const (
	OutcomeSuccess = domain.OutcomeSuccess
	OutcomeFailure = domain.OutcomeFailure
)

// Re-exported sentinel errors.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrQueueFull       = domain.ErrQueueFull
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrShutdownTimeout = domain.ErrShutdownTimeout
)

// NewRecord builds a Record, copying the attribute map.
func NewRecord(id RecordID, payload []byte, attrs map[string]string) Record {
	return domain.NewRecord(id, payload, attrs)
}

// Lineship is a delimiter-aware network record dispatcher that can be
// embedded in other applications. Use New() to create an instance, then
// Start() to begin dispatching.
type Lineship struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	intake    *app.Intake
	pump      *app.Pump
	logger    ports.Logger

	plugins []Plugin
	spool   *spoolRunner

	outcomes  chan Result
	closeOnce sync.Once

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Lineship instance with the given configuration.
// The instance is created in StateStopped; call Start() to begin
// dispatching. Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Lineship, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	var emitter eventEmitterWrapper
	if o.eventHandler != nil {
		emitter = eventEmitterWrapper{handler: o.eventHandler}
	}

	lifecycle := app.NewLifecycle(logger, &emitter)

	resolver := o.resolver
	if resolver == nil {
		cs, err := delim.LookupCharset(cfg.Charset)
		if err != nil {
			return nil, err
		}
		resolver = delim.NewResolver(cfg.Delimiter, cs)
	}

	factory := o.factory
	if factory == nil {
		var err error
		factory, err = wire.Factory(cfg.Protocol, wire.Config{
			Host:            cfg.Host,
			Port:            cfg.Port,
			ConnectTimeout:  cfg.ConnectTimeout,
			WriteQueueSize:  cfg.WriteQueueSize,
			QuietPeriod:     cfg.ShutdownQuietPeriod,
			ShutdownTimeout: cfg.ShutdownTimeout,
			Dialer:          o.dialer,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
	}

	var statsRepo ports.StatsRepository = noopStatsRepository{}
	if cfg.StateDir != "" {
		statsRepo = fs.NewStatsFileRepository(cfg.StateDir)
	}

	var spoolRun *spoolRunner
	if o.spool != nil {
		spoolRun = newSpoolRunner(*o.spool, logger)
	}

	outcomeBuffer := o.outcomeBuffer
	if outcomeBuffer <= 0 {
		outcomeBuffer = cfg.QueueSize
	}

	l := &Lineship{
		config:    cfg,
		opts:      o,
		lifecycle: lifecycle,
		logger:    logger,
		plugins:   o.plugins,
		spool:     spoolRun,
		outcomes:  make(chan Result, outcomeBuffer),
	}

	l.intake = app.NewIntake(cfg.QueueSize)
	dispatcher := app.NewDispatcher(app.DispatcherConfig{
		MaxPerDispatch:  cfg.MaxPerDispatch,
		TeardownTimeout: cfg.ShutdownQuietPeriod + cfg.ShutdownTimeout,
	}, resolver, factory, l.intake, logger)
	l.pump = app.NewPump(app.PumpConfig{
		Poll:         cfg.Poll,
		DrainTimeout: cfg.ShutdownQuietPeriod + cfg.ShutdownTimeout,
		Once:         cfg.Once,
	}, dispatcher, l.intake, statsRepo, &resultSink{l: l, emitter: &emitter}, logger)

	return l, nil
}

// Start begins dispatching in the background.
// Returns immediately after starting the pump goroutine.
// Returns an error if already running or if startup fails.
// The provided context is used for the lifetime of the dispatch operation.
func (l *Lineship) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := l.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.ctx = runCtx
	l.cancel = cancel
	l.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		Protocol:   l.config.Protocol,
		Host:       l.config.Host,
		Port:       l.config.Port,
		StateDir:   l.config.StateDir,
		ConfigPath: l.config.ConfigPath,
		Logger:     l.logger,
	}
	if l.spool != nil {
		pluginCfg.SpoolDir = l.spool.cfg.Dir
	}
	for _, p := range l.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			l.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			_ = l.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		l.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	if l.spool != nil {
		if err := l.spool.start(runCtx, l.Submit); err != nil {
			l.logger.Error("spool start failed", ports.Err(err))
			cancel()
			_ = l.lifecycle.TransitionTo(app.StateCrashed, "spool start failed")
			return err
		}
	}

	l.lifecycle.AddWorker()
	go func() {
		defer l.lifecycle.WorkerDone()

		if err := l.lifecycle.TransitionTo(app.StateRunning, "pump starting"); err != nil {
			l.logger.Error("failed to transition to running", ports.Err(err))
			return
		}

		err := l.pump.Run(runCtx)

		switch {
		case err == nil:
			// Once mode ran out of work; the instance stops itself.
			_ = l.lifecycle.TransitionTo(app.StateDraining, "all work settled")
			_ = l.lifecycle.TransitionTo(app.StateStopped, "all work settled")
			l.closeOutcomes()
		case errors.Is(err, context.Canceled):
			// Stop() drives the transitions.
		default:
			l.logger.Error("pump error", ports.Err(err))
			_ = l.lifecycle.TransitionTo(app.StateCrashed, err.Error())
			l.closeOutcomes()
		}
	}()

	return nil
}

// Stop gracefully shuts down the instance. In-flight sends are settled,
// queued records are failed with a shutdown error, and final counters
// are persisted. Waits up to 30 seconds before forcing shutdown.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (l *Lineship) Stop() error {
	l.mu.Lock()

	if !l.lifecycle.CanStop() {
		l.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := l.lifecycle.TransitionTo(app.StateDraining, "Stop() called"); err != nil {
		l.mu.Unlock()
		return err
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	err := l.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	if l.spool != nil {
		l.spool.stop()
	}

	shutdownCtx := context.Background()
	for i := len(l.plugins) - 1; i >= 0; i-- {
		p := l.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			l.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(shutdownErr))
		} else {
			l.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}

	if err != nil {
		_ = l.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = l.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	l.closeOutcomes()

	return err
}

// Submit hands one record to the dispatcher. It never blocks: a full
// queue returns ErrQueueFull immediately, and a stopped instance
// returns ErrNotRunning. The record's terminal outcome is delivered on
// Outcomes().
func (l *Lineship) Submit(rec Record) error {
	switch l.lifecycle.State() {
	case app.StateStarting, app.StateRunning:
	default:
		return domain.ErrNotRunning
	}
	if err := l.intake.Put(rec); err != nil {
		return err
	}
	l.pump.Kick()
	return nil
}

// Outcomes returns the channel terminal results are delivered on.
// Exactly one Result arrives per accepted record. The channel is closed
// once the instance stops. Consume it promptly; results that find the
// buffer full are dropped from the channel with a warning (event
// handlers and counters still observe them).
func (l *Lineship) Outcomes() <-chan Result {
	return l.outcomes
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (l *Lineship) Status() State {
	return convertState(l.lifecycle.State())
}

// Stats returns a copy of the cumulative dispatch counters.
func (l *Lineship) Stats() domain.Stats {
	return l.pump.Stats()
}

func (l *Lineship) closeOutcomes() {
	l.closeOnce.Do(func() {
		close(l.outcomes)
	})
}

// resultSink fans each terminal result out to the outcomes channel, the
// event handler, and the spool runner. It runs on the pump goroutine.
type resultSink struct {
	l       *Lineship
	emitter *eventEmitterWrapper
}

func (s *resultSink) OnResult(r Result) {
	if s.l.spool != nil {
		s.l.spool.onResult(r)
	}
	s.emitter.onResult(r)

	select {
	case s.l.outcomes <- r:
	default:
		s.l.logger.Warn("outcome channel full, dropping result",
			ports.String("record", string(r.Record)))
	}
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) onResult(r Result) {
	if e.handler == nil {
		return
	}
	if r.Failed() {
		e.handler.OnRecordFailed(RecordFailedEvent{Record: r.Record, Err: r.Err})
		return
	}
	e.handler.OnRecordSent(RecordSentEvent{
		Record:   r.Record,
		Messages: r.Messages,
		Bytes:    r.Bytes,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateDraining:
		return StateDraining
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// noopStatsRepository discards counters when no state directory is
// configured.
type noopStatsRepository struct{}

func (noopStatsRepository) Load(ctx context.Context) (domain.Stats, error) { return domain.Stats{}, nil }

func (noopStatsRepository) Save(ctx context.Context, stats domain.Stats) error { return nil }
