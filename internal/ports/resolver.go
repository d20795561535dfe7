package ports

// DelimiterResolver produces the concrete delimiter bytes for one record
// from its attributes. Implementations are pure functions of their inputs;
// the dispatcher core carries no dependency on any particular expression
// syntax.
type DelimiterResolver interface {
	// Resolve returns the delimiter to split the record's payload with.
	// An empty resolution is an error (domain.ConfigError wrapping
	// domain.ErrEmptyDelimiter); the record is failed without any network
	// activity.
	Resolve(attrs map[string]string) ([]byte, error)
}

// ResolverFunc adapts a plain function to the DelimiterResolver interface.
type ResolverFunc func(attrs map[string]string) ([]byte, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(attrs map[string]string) ([]byte, error) {
	return f(attrs)
}
