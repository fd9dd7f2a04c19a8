// Package textnorm canonicalizes free text so that actor names, severity
// labels and pause keywords compare equal regardless of spacing, case or
// accents.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, decomposes to NFD, drops nonspacing marks, then
// collapses whitespace runs to a single space and trims. It never fails.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	// transform.Chain holds state, so a fresh one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}

	// Spaces around a removed mark collapse too.
	return strings.Join(strings.Fields(s), " ")
}

// Contains reports whether needle occurs in haystack after both are normalized.
func Contains(haystack, needle string) bool {
	return strings.Contains(Normalize(haystack), Normalize(needle))
}

// Equal reports whether a and b normalize to the same string.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
