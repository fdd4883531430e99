package indexer

import (
	"fmt"
	"regexp"
	"strings"
)

// Splitter kinds accepted by NewSplitter.
const (
	SplitterParagraph = "paragraph"
	SplitterWindow    = "window"
)

// Splitter breaks document text into the pieces that are embedded and
// retrieved on their own.
type Splitter interface {
	Split(text string) []string
}

// NewSplitter returns the splitter named by kind. For "paragraph" size and
// overlap are in characters, for "window" they are in words. A negative
// overlap is rejected.
func NewSplitter(kind string, size, overlap int) (Splitter, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("%s splitter: overlap must not be negative, got %d", kindName(kind), overlap)
	}
	switch kind {
	case SplitterParagraph, "":
		return NewParagraphSplitter(size, overlap), nil
	case SplitterWindow:
		if size <= 0 {
			return nil, fmt.Errorf("window splitter: size must be positive, got %d", size)
		}
		return NewWindowSplitter(size, overlap), nil
	default:
		return nil, fmt.Errorf("unknown splitter %q", kind)
	}
}

func kindName(kind string) string {
	if kind == "" {
		return SplitterParagraph
	}
	return kind
}

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// ParagraphSplitter splits on blank lines. Consecutive paragraphs are
// packed into one segment while they fit in MaxChars; a paragraph longer
// than MaxChars is cut into word windows sharing about Overlap characters.
// MaxChars <= 0 yields one segment per paragraph.
type ParagraphSplitter struct {
	MaxChars int
	Overlap  int
}

// NewParagraphSplitter creates a paragraph splitter.
func NewParagraphSplitter(maxChars, overlap int) *ParagraphSplitter {
	return &ParagraphSplitter{MaxChars: maxChars, Overlap: overlap}
}

// Paragraphs returns the trimmed, non-empty blank-line separated blocks of text.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Split implements Splitter.
func (s *ParagraphSplitter) Split(text string) []string {
	paras := Paragraphs(text)
	if s.MaxChars <= 0 {
		return paras
	}
	var (
		out     []string
		current string
	)
	for _, p := range paras {
		if len(p) > s.MaxChars {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			out = append(out, splitLong(p, s.MaxChars, s.Overlap)...)
			continue
		}
		switch {
		case current == "":
			current = p
		case len(current)+2+len(p) <= s.MaxChars:
			current += "\n\n" + p
		default:
			out = append(out, current)
			current = p
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// splitLong cuts text into word windows of at most maxChars characters. Each
// window after the first starts with trailing words of the previous one
// totalling no more than overlap characters. A single word longer than
// maxChars becomes its own window.
func splitLong(text string, maxChars, overlap int) []string {
	words := strings.Fields(text)
	if overlap >= maxChars {
		overlap = maxChars / 2
	}
	var (
		out []string
		win []string
		n   int
	)
	emit := func() {
		out = append(out, strings.Join(win, " "))
		var carry []string
		c := 0
		for i := len(win) - 1; i >= 0; i-- {
			if c+len(win[i])+1 > overlap {
				break
			}
			c += len(win[i]) + 1
			carry = append([]string{win[i]}, carry...)
		}
		win, n = carry, c
	}
	for _, w := range words {
		if len(win) > 0 && n+len(w) > maxChars {
			emit()
			if len(win) > 0 && n+len(w) > maxChars {
				win, n = nil, 0
			}
		}
		win = append(win, w)
		n += len(w) + 1
	}
	if len(win) > 0 {
		out = append(out, strings.Join(win, " "))
	}
	return out
}

// WindowSplitter splits text into overlapping windows of Size words. A
// negative Overlap counts as 0, so every word lands in some window.
type WindowSplitter struct {
	Size    int
	Overlap int
}

// NewWindowSplitter creates a window splitter with the given size and
// overlap in words.
func NewWindowSplitter(size, overlap int) *WindowSplitter {
	return &WindowSplitter{Size: size, Overlap: overlap}
}

// Split implements Splitter.
func (s *WindowSplitter) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := s.Size - max(s.Overlap, 0)
	if step <= 0 {
		step = 1
	}
	var out []string
	for i := 0; i < len(words); i += step {
		end := i + s.Size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return out
}
