package ledger

import (
	"regexp"
	"strings"
)

var blankLine = regexp.MustCompile(`\r?\n[ \t]*(\r?\n[ \t]*)+`)

// SplitParagraphs splits text on blank-line boundaries, trimming each
// paragraph and dropping empty ones.
func SplitParagraphs(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	for _, part := range blankLine.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalize collapses runs of whitespace so formatting-only differences do
// not count as edits.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
