// Package split cuts a record payload into the discrete messages that
// travel on the wire.
//
// Splitting scans for non-overlapping occurrences of a delimiter, left
// to right. Delimiter-terminated and delimiter-separated payloads yield
// the same messages: a delimiter at the very end produces no empty
// trailing message. An empty payload produces no messages at all. Every
// other empty segment, leading or interior, is a real message.
package split

import "bytes"

// Scanner iterates over the messages of a single payload. Messages are
// subslices of the payload, not copies; callers that hold a message
// beyond the payload's lifetime must copy it.
type Scanner struct {
	payload []byte
	delim   []byte
	pos     int
	msg     []byte
}

// New returns a Scanner over payload using delim as the message
// separator. delim must be non-empty; an empty delim is treated as
// absent, yielding the whole payload as a single message.
func New(payload, delim []byte) *Scanner {
	return &Scanner{payload: payload, delim: delim}
}

// Next advances to the next message, returning false when the payload
// is exhausted. An empty payload is exhausted from the start.
func (s *Scanner) Next() bool {
	if s.pos >= len(s.payload) {
		s.msg = nil
		return false
	}
	if len(s.delim) > 0 {
		if i := bytes.Index(s.payload[s.pos:], s.delim); i >= 0 {
			s.msg = s.payload[s.pos : s.pos+i]
			s.pos += i + len(s.delim)
			return true
		}
	}
	s.msg = s.payload[s.pos:]
	s.pos = len(s.payload)
	return true
}

// Message returns the message produced by the last successful Next
// call, or nil before the first call and after exhaustion.
func (s *Scanner) Message() []byte { return s.msg }

// Reset rewinds the Scanner to the start of the payload.
func (s *Scanner) Reset() {
	s.pos = 0
	s.msg = nil
}

// Count returns the number of messages in the payload. It does not
// disturb the Scanner's position.
func (s *Scanner) Count() int {
	n := 0
	for pos := 0; pos < len(s.payload); {
		if len(s.delim) > 0 {
			if i := bytes.Index(s.payload[pos:], s.delim); i >= 0 {
				n++
				pos += i + len(s.delim)
				continue
			}
		}
		n++
		break
	}
	return n
}

// Messages splits payload in one pass and returns every message.
func Messages(payload, delim []byte) [][]byte {
	var out [][]byte
	sc := New(payload, delim)
	for sc.Next() {
		out = append(out, sc.Message())
	}
	return out
}
