package helpers

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeLine makes a header value safe to print as part of one output
// line. Invalid UTF-8 and NULL bytes are dropped; folding whitespace and
// other control characters collapse to a single space.
func SanitizeLine(s string) string {
	if utf8.ValidString(s) && !strings.ContainsFunc(s, unicode.IsControl) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = r == ' '
		b.WriteRune(r)
	}
	return b.String()
}
