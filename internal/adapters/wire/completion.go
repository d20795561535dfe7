package wire

import "sync"

// sendResult is the ports.Completion handle for one message handed to a
// transport. It resolves exactly once; later resolutions are ignored.
type sendResult struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newSendResult() *sendResult {
	return &sendResult{done: make(chan struct{})}
}

// resolvedResult returns a completion that is already settled. Datagram
// sends use it because they have no asynchronous phase.
func resolvedResult(err error) *sendResult {
	r := newSendResult()
	r.resolve(err)
	return r
}

func (r *sendResult) resolve(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done returns the channel closed on resolution.
func (r *sendResult) Done() <-chan struct{} { return r.done }

// Err returns the send error. Meaningful only after Done is closed.
func (r *sendResult) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}
