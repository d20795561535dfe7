// Package delim turns the configured message delimiter into the exact
// bytes that separate messages on the wire.
//
// A delimiter is configured as text. Before use it goes through three
// steps: ${name} references are expanded against the attributes of the
// record being dispatched, the two-character escape \n is collapsed to
// a newline, and the result is encoded into the configured character
// set. A delimiter that comes out empty is a configuration error, not
// a license to send the payload unsplit.
package delim

import (
	"strings"

	"github.com/bft-labs/lineship/internal/domain"
	"github.com/bft-labs/lineship/pkg/interp"
)

// Resolver produces wire delimiter bytes for individual records.
// Construct it once per configuration; Resolve is safe for concurrent
// use.
type Resolver struct {
	pattern string
	charset *Charset

	// Precomputed result when the pattern references no attributes.
	static    []byte
	staticErr error
	dynamic   bool
}

// NewResolver builds a Resolver for the given delimiter pattern. A nil
// charset means UTF-8.
func NewResolver(pattern string, charset *Charset) *Resolver {
	r := &Resolver{
		pattern: pattern,
		charset: charset,
		dynamic: interp.HasReference(pattern),
	}
	if !r.dynamic {
		r.static, r.staticErr = r.resolve(nil)
	}
	return r
}

// Dynamic reports whether the delimiter depends on record attributes.
func (r *Resolver) Dynamic() bool { return r.dynamic }

// Resolve returns the delimiter bytes for a record with the given
// attributes. The returned slice is a fresh copy the caller may keep.
func (r *Resolver) Resolve(attrs map[string]string) ([]byte, error) {
	if !r.dynamic {
		if r.staticErr != nil {
			return nil, r.staticErr
		}
		out := make([]byte, len(r.static))
		copy(out, r.static)
		return out, nil
	}
	return r.resolve(attrs)
}

func (r *Resolver) resolve(attrs map[string]string) ([]byte, error) {
	s := interp.Expand(r.pattern, attrs)
	s = strings.ReplaceAll(s, `\n`, "\n")
	b, err := r.charset.Encode(s)
	if err != nil {
		return nil, &domain.ConfigError{Err: err}
	}
	if len(b) == 0 {
		return nil, &domain.ConfigError{Err: domain.ErrEmptyDelimiter}
	}
	return b, nil
}
