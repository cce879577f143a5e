package ocr

import (
	"strings"
	"unicode"
)

// isRuleLine reports lines made only of border glyphs, which tesseract emits
// for the decorative frames most certificates carry.
func isRuleLine(line string) bool {
	n := 0
	for _, r := range line {
		switch r {
		case '_', '-', '=', '|', '~', '*':
			n++
		case ' ':
		default:
			return false
		}
	}
	return n >= 3
}

// collapseSpaces maps every run of horizontal whitespace to one space and
// trims both ends.
func collapseSpaces(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	space := false
	for _, r := range line {
		if r != '\n' && unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize cleans OCR and pdf text layers: CRLF and form feeds become line
// breaks, whitespace runs collapse, border rules vanish and at most one blank
// line separates blocks.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n").Replace(s)

	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = collapseSpaces(line)
		if line == "" || isRuleLine(line) {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
