package verify

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, drops everything but letters, digits and spaces, and
// collapses whitespace runs so "  prashant   SINGH " compares equal to "Prashant Singh".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SameIdentity reports whether a and b are equal after normalisation and both non-empty.
func SameIdentity(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
