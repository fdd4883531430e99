package embedding

import (
	"strings"
	"unicode"
)

// BERT special tokens and the vocabulary size word hashes are folded into.
const (
	clsTokenID       = 101
	sepTokenID       = 102
	wordVocabSize    = 30000
	defaultMaxTokens = 256
)

// Tokenizer turns text into the three fixed-length inputs a BERT-style
// encoder expects.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer maps each word to a hashed vocabulary ID. It has no
// vocabulary file, so it only suits models trained with the same hashing.
type SimpleTokenizer struct{}

// Tokenize returns [CLS] word... [SEP] padded with zeros to maxTokens.
// Words that do not fit are dropped.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	n := 0
	emit := func(id int64) {
		inputIDs[n] = id
		attentionMask[n] = 1
		n++
	}
	emit(clsTokenID)
	for _, word := range SplitWords(text) {
		if n >= maxTokens-1 {
			break
		}
		emit(int64(HashString(word) % wordVocabSize))
	}
	if n < maxTokens {
		emit(sepTokenID)
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords lowercases text and splits it on anything that is not a
// letter or digit.
func SplitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashString returns a deterministic non-negative polynomial hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	// -MinInt is still negative.
	if h < 0 {
		return 0
	}
	return h
}
