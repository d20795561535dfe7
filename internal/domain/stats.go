package domain

import "time"

// Stats holds cumulative dispatch counters. They are operational
// bookkeeping only; the dispatcher never consults them to decide behavior.
type Stats struct {
	// RecordsSuccess counts records that reached OutcomeSuccess.
	RecordsSuccess uint64 `json:"records_success"`

	// RecordsFailure counts records that reached OutcomeFailure.
	RecordsFailure uint64 `json:"records_failure"`

	// MessagesSent counts messages handed to the transport for records
	// that succeeded.
	MessagesSent uint64 `json:"messages_sent"`

	// BytesSent counts payload bytes of successful records, excluding framing.
	BytesSent uint64 `json:"bytes_sent"`

	// LastError is the message of the most recent record failure, if any.
	LastError string `json:"last_error,omitempty"`

	// UpdatedAt is when the stats were last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Observe folds one record result into the counters.
func (s *Stats) Observe(r Result) {
	if r.Failed() {
		s.RecordsFailure++
		if r.Err != nil {
			s.LastError = r.Err.Error()
		}
		return
	}
	s.RecordsSuccess++
	s.MessagesSent += uint64(r.Messages)
	s.BytesSent += uint64(r.Bytes)
}

// Records returns the total number of records with a terminal outcome.
func (s *Stats) Records() uint64 {
	return s.RecordsSuccess + s.RecordsFailure
}
