package memory

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/models"
)

// perMessageTokens approximates the role and framing tokens each chat message costs.
const perMessageTokens = 4

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with the BPE encoding of an OpenAI model.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding for model, falling back to
// cl100k_base for model names tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding for %s: %w", model, err)
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// RuneCounter estimates one token per RunesPerToken runes (default 4),
// rounding up.
type RuneCounter struct {
	RunesPerToken int
}

func (r RuneCounter) CountTokens(text string) int {
	per := r.RunesPerToken
	if per <= 0 {
		per = 4
	}
	n := utf8.RuneCountInString(text)
	return (n + per - 1) / per
}

// NewCounter returns a tiktoken counter for model, or a RuneCounter when the
// encoding cannot be loaded (tiktoken fetches encodings on first use).
func NewCounter(model string, logger *zap.Logger) TokenCounter {
	tc, err := NewTiktokenCounter(model)
	if err != nil {
		if logger != nil {
			logger.Warn("token counting falls back to rune estimate", zap.String("model", model), zap.Error(err))
		}
		return RuneCounter{}
	}
	return tc
}

// CountMessages returns the tokens msgs occupy in a prompt.
func CountMessages(c TokenCounter, msgs []models.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += perMessageTokens + c.CountTokens(m.Content)
		for _, tc := range m.ToolCalls {
			total += c.CountTokens(tc.Name) + c.CountTokens(tc.Arguments)
		}
	}
	return total
}
