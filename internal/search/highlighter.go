package search

import "github.com/LangChat/ai-tutorials/pkg/utils"

// Highlight returns a single-line snippet of content of at most maxLen
// runes, appending "..." when anything was cut. maxLen <= 0 returns the
// whole content on one line.
func Highlight(content string, maxLen int) string {
	return utils.Truncate(utils.SingleLine(content), maxLen)
}
