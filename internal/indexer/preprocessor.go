package indexer

import (
	"regexp"
	"strings"
)

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v]+`)
	extraBlank  = regexp.MustCompile(`\n{3,}`)
)

// Preprocess normalizes text for indexing: line endings become "\n", runs of
// spaces and tabs collapse to one space, lines are trimmed and more than one
// blank line in a row collapses to one. Paragraph breaks survive.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(l, " "))
	}
	text = strings.Join(lines, "\n")
	text = extraBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
