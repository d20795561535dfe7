package lineship

// State represents the lifecycle state of a Lineship instance.
type State int

const (
	// StateStopped means the instance is not running.
	StateStopped State = iota

	// StateStarting means Start() was called and the pump is coming up.
	StateStarting

	// StateRunning means records are being accepted and dispatched.
	StateRunning

	// StateDraining means the instance is settling in-flight sends and
	// queued records on its way to Stopped.
	StateDraining

	// StateCrashed means the pump exited with an unrecoverable error or
	// shutdown timed out.
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

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// RecordSentEvent is emitted when a record reaches OutcomeSuccess.
type RecordSentEvent struct {
	Record   RecordID
	Messages int
	Bytes    int
}

// RecordFailedEvent is emitted when a record reaches OutcomeFailure.
type RecordFailedEvent struct {
	Record RecordID
	Err    error
}

// EventHandler receives notifications about lineship operations.
// Callbacks run synchronously on the dispatch goroutine; implementations
// should return quickly.
type EventHandler interface {
	// OnStateChange is called on every lifecycle transition.
	OnStateChange(event StateChangeEvent)

	// OnRecordSent is called for every record delivered in full.
	OnRecordSent(event RecordSentEvent)

	// OnRecordFailed is called for every record that fails.
	OnRecordFailed(event RecordFailedEvent)
}

// BaseEventHandler provides no-op implementations of every EventHandler
// method. Embed it to implement only the callbacks you care about.
type BaseEventHandler struct{}

// OnStateChange does nothing.
func (BaseEventHandler) OnStateChange(event StateChangeEvent) {}

// OnRecordSent does nothing.
func (BaseEventHandler) OnRecordSent(event RecordSentEvent) {}

// OnRecordFailed does nothing.
func (BaseEventHandler) OnRecordFailed(event RecordFailedEvent) {}
