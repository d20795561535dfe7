package delim

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Charset converts configuration text, which is always UTF-8 in Go
// source and config files, into the byte encoding used on the wire.
// The zero value and the nil pointer both mean UTF-8 pass-through.
type Charset struct {
	name string
	enc  encoding.Encoding
}

// LookupCharset resolves an IANA character set name ("UTF-8",
// "ISO-8859-1", "US-ASCII", ...) to a Charset. An empty name selects
// UTF-8. Names the registry does not know, or knows but cannot encode,
// return an error.
func LookupCharset(name string) (*Charset, error) {
	if name == "" || strings.EqualFold(name, "UTF-8") {
		return &Charset{name: "UTF-8"}, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: no encoder available", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil || canonical == "" {
		canonical = name
	}
	return &Charset{name: canonical, enc: enc}, nil
}

// Name returns the canonical IANA name of the character set.
func (c *Charset) Name() string {
	if c == nil || c.name == "" {
		return "UTF-8"
	}
	return c.name
}

// Encode converts s into the character set. Characters with no
// representation in the target encoding are replaced with the
// encoding's substitute byte rather than failing the whole string.
func (c *Charset) Encode(s string) ([]byte, error) {
	if c == nil || c.enc == nil {
		return []byte(s), nil
	}
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("charset %s: encode: %w", c.Name(), err)
	}
	return out, nil
}
