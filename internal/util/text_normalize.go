package util

import (
	"strings"
	"unicode"
)

// NormalizePageText prepares extracted page text for storage and chunking. It drops
// NUL and other controls Postgres text columns reject, zero-width marks and U+FFFD
// left by PDF decoders, collapses horizontal whitespace runs, and keeps at most one
// blank line between paragraphs.
func NormalizePageText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	space, newlines := false, 0
	for _, ch := range s {
		switch {
		case ch == '\n':
			newlines++
			space = false
			continue
		case ch == '\t' || ch == '\r' || ch == ' ' || ch == '\u00a0':
			space = true
			continue
		case ch == '\ufeff' || ch == '\u200b' || ch == '\ufffd' || ch == '\u00ad':
			continue
		case unicode.IsControl(ch):
			continue
		}
		if newlines > 0 {
			if b.Len() > 0 {
				b.WriteString(strings.Repeat("\n", min(newlines, 2)))
			}
			newlines, space = 0, false
		} else if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(ch)
	}
	return b.String()
}
