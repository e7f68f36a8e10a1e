// internal/validation/sanitize.go
// Text cleaning primitives shared by the field validator.

package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spacesRe    = regexp.MustCompile(`[ \t]+`)
	emailDropRe = regexp.MustCompile(`[\x00-\x1f\x7f<>'"\\,;\s]`)
)

// CleanText trims, strips control characters and collapses runs of
// whitespace into single spaces.
func CleanText(s string) string {
	s = stripControl(s, false)
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanMultiline preserves line breaks while collapsing other whitespace.
// Windows line endings are normalized first.
func CleanMultiline(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = stripControl(s, true)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(spacesRe.ReplaceAllString(line, " "), " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n ")
}

// CleanEmail lowercases and removes characters that can never appear in a
// deliverable address, including anything that would enable header injection.
func CleanEmail(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return emailDropRe.ReplaceAllString(s, "")
}

// stripControl removes control characters; keepNewlines retains \n.
// Without keepNewlines, line breaks become spaces so words on adjacent
// lines do not run together.
func stripControl(s string, keepNewlines bool) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' && keepNewlines {
			return r
		}
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
