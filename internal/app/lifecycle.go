package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/internal/ports"
)

// ShutdownTimeout is the maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of a dispatcher instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning

	// StateDraining covers the stop path: the pump has been told to
	// exit and is settling in-flight sends and queued records before
	// the instance goes back to Stopped.
	StateDraining

	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// active reports whether the state belongs to a live instance.
func (s State) active() bool {
	return s == StateStarting || s == StateRunning || s == StateDraining
}

// Lifecycle manages the state machine for a dispatcher instance.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       ports.Logger
	eventEmitter EventEmitter
}

// EventEmitter is called when the lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateStopped,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// allowed returns the states reachable from s.
func allowed(s State) []State {
	switch s {
	case StateStopped:
		return []State{StateStarting}
	case StateStarting:
		// Draining covers an early Stop during startup.
		return []State{StateRunning, StateDraining, StateCrashed}
	case StateRunning:
		return []State{StateDraining, StateCrashed}
	case StateDraining:
		return []State{StateStopped, StateCrashed}
	case StateCrashed:
		return []State{StateStarting}
	default:
		return nil
	}
}

// TransitionTo attempts to transition to a new state. The error for an
// invalid transition wraps ErrAlreadyRunning when leaving a live state
// and ErrNotRunning otherwise, so callers get the verdict that matches
// what they tried to do.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	valid := false
	for _, s := range allowed(oldState) {
		if s == newState {
			valid = true
			break
		}
	}
	if !valid {
		l.mu.Unlock()
		base := domain.ErrNotRunning
		if oldState.active() {
			base = domain.ErrAlreadyRunning
		}
		return fmt.Errorf("%w: cannot move from %s to %s", base, oldState, newState)
	}

	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)

	return nil
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

// SetCancel stores the cancel function that stops the pump.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel signals the pump to begin draining.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// AddWorker increments the worker count.
func (l *Lifecycle) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (l *Lifecycle) WorkerDone() {
	l.wg.Done()
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
