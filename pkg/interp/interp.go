// Package interp expands ${name} attribute references inside
// configuration strings.
//
// The syntax is deliberately small: ${name} is replaced with the value
// of the attribute called name, a reference to an absent attribute
// expands to the empty string, and a doubled dollar sign escapes the
// syntax so that "$${x}" produces the literal text "${x}". Anything
// else, including a dollar sign without a brace or a reference with no
// closing brace, is copied through untouched.
package interp

import "strings"

// Expand substitutes ${name} references in s with values from attrs.
func Expand(s string, attrs map[string]string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' {
			if end := strings.IndexByte(s[i+2:], '}'); end >= 0 {
				b.WriteString(attrs[s[i+2:i+2+end]])
				i += end + 3
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// HasReference reports whether s contains at least one well-formed,
// unescaped ${name} reference. It walks the string with the same rules
// Expand uses, so the two functions always agree.
func HasReference(s string) bool {
	for i := 0; i < len(s); {
		if s[i] != '$' {
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '$' {
			i += 2
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' && strings.IndexByte(s[i+2:], '}') >= 0 {
			return true
		}
		i++
	}
	return false
}
