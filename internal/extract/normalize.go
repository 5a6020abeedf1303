package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize collapses every whitespace run to a single space and trims the
// result, keeping paragraph boundaries: wherever the input had a blank line
// between two blocks of text, the output has exactly "\n\n". The result is in
// Unicode NFC. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	paragraphs := make([]string, 0, 8)
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		if p := collapseSpaces(strings.Join(current, " ")); p != "" {
			paragraphs = append(paragraphs, p)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return norm.NFC.String(strings.Join(paragraphs, "\n\n"))
}

// collapseSpaces joins the whitespace-separated fields of s with single
// spaces. Unicode spaces such as NBSP count as whitespace.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
