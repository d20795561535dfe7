package domain

// Outcome is the terminal verdict for one record. There is no partial
// outcome: success requires every message of the record to have been sent,
// and any single failure marks the whole record failed.
type Outcome int

const (
	// OutcomeSuccess means every message of the record was accepted by the
	// transport.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure means delimiter resolution, connection establishment,
	// or at least one message send failed.
	OutcomeFailure
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Result is the terminal report for one record. The dispatcher emits
// exactly one Result per accepted record, after every pending send of that
// record has resolved.
type Result struct {
	// Record identifies the submission this result belongs to.
	Record RecordID

	// Outcome is the verdict.
	Outcome Outcome

	// Err is the cause when Outcome is OutcomeFailure, nil otherwise.
	Err error

	// Messages is the number of messages handed to the transport.
	Messages int

	// Bytes is the number of payload bytes handed to the transport,
	// excluding framing.
	Bytes int
}

// Failed reports whether the record ended in failure.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeFailure
}
