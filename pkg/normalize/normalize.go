// Package normalize cleans free-text identification strings (vendor,
// model, hostname) into a comparable form. All functions are pure and
// idempotent.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Text normalizes a display string. A literal double quote (used to
// denote inches in model names) becomes the token "-inch"; remaining
// quote, parenthesis and slash characters are stripped; whitespace
// runs collapse to a single space; the ends are trimmed.
//
// Text(Text(s)) == Text(s) for all s.
func Text(raw string) string {
	s := strings.ReplaceAll(raw, `"`, "-inch")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '(', ')', '/', '\'', '`', '\\':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Key normalizes a string for keyword matching: Text plus case
// folding. Display normalization is Text alone.
func Key(raw string) string {
	return strings.ToLower(Text(raw))
}

var vendorCaser = cases.Title(language.English)

// Vendor normalizes a manufacturer name for display: cleaned like
// Text, then title-cased so "LENOVO" and "lenovo" render identically.
func Vendor(raw string) string {
	return vendorCaser.String(strings.ToLower(Text(raw)))
}

// Hostname normalizes a hostname for identity comparison: the domain
// suffix is dropped and the short name case-folded.
func Hostname(raw string) string {
	short, _, _ := strings.Cut(strings.TrimSpace(raw), ".")
	return strings.ToLower(short)
}
