package domain

// RecordID is a caller-supplied opaque handle identifying one submission.
// It must be unique per submission; the dispatcher reports exactly one
// terminal Result for each ID it accepts.
type RecordID string

// Record is one unit of input data: an immutable byte payload plus a
// mapping from attribute name to string value. The payload is split into
// messages on a delimiter and each message is placed on the wire; the
// attributes participate only in delimiter resolution.
type Record struct {
	// ID identifies this submission to the caller.
	ID RecordID

	// Payload is the raw bytes to split and send. Sent unmodified; only
	// delimiter scanning is charset-aware.
	Payload []byte

	// Attributes carries optional per-record metadata. Insertion order is
	// irrelevant. May be nil.
	Attributes map[string]string
}

// NewRecord builds a Record, copying the attribute map so later caller
// mutations cannot reach the dispatcher.
func NewRecord(id RecordID, payload []byte, attrs map[string]string) Record {
	var copied map[string]string
	if len(attrs) > 0 {
		copied = make(map[string]string, len(attrs))
		for k, v := range attrs {
			copied[k] = v
		}
	}
	return Record{ID: id, Payload: payload, Attributes: copied}
}

// Attr returns the named attribute value and whether it is present.
func (r Record) Attr(name string) (string, bool) {
	v, ok := r.Attributes[name]
	return v, ok
}

// Size returns the payload length in bytes.
func (r Record) Size() int {
	return len(r.Payload)
}
