// Package keyword provides BM25 keyword indexing and search over text
// segments, used alongside vector search for hybrid retrieval.
package keyword

import (
	"context"

	"github.com/LangChat/ai-tutorials/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the
	// document title. Values <= 1 search title and text as one field.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance (1 or 2). Defaults to 1.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over segments.
type KeywordIndex interface {
	// Index adds or replaces seg; title is the owning document's title.
	Index(ctx context.Context, seg *models.TextSegment, title string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, ids ...string) error
	// DeleteByDocument removes every segment of the document and returns how
	// many were removed.
	DeleteByDocument(ctx context.Context, docID string) (int, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit; ID is the segment ID.
type KeywordResult struct {
	ID         string
	DocumentID string
	Score      float64
}
