package utils

import (
	"strings"
	"unicode"
)

// NormalizeIdentifier keeps letters, digits and underscores of name, in order,
// and drops everything else. A leading digit is left alone. The result may be
// empty; callers treat that as an invalid identifier.
func NormalizeIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
