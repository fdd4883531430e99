// Package vector provides an embedding store: segments kept alongside their
// embeddings and searched by cosine similarity.
package vector

import (
	"context"

	"github.com/LangChat/ai-tutorials/internal/models"
)

// EmbeddingStore holds embedded text segments and answers similarity queries.
type EmbeddingStore interface {
	// Add stores one embedding with its segment and returns the embedding ID.
	// A segment carrying an ID that is already present replaces that entry.
	Add(ctx context.Context, embedding []float32, segment *models.TextSegment) (string, error)
	AddAll(ctx context.Context, embeddings [][]float32, segments []*models.TextSegment) ([]string, error)
	// Search returns up to req.MaxResults matches scoring at least
	// req.MinScore, best first. An empty store yields no matches.
	Search(ctx context.Context, req *models.SearchRequest) ([]*models.EmbeddingMatch, error)
	Remove(ctx context.Context, ids ...string) error
	// RemoveByFilter removes every entry whose metadata matches filter and
	// returns how many were removed.
	RemoveByFilter(ctx context.Context, filter map[string]string) (int, error)
	RemoveAll(ctx context.Context) error
	All(ctx context.Context) ([]*models.EmbeddingMatch, error)
	Size() int
	Close() error
}

// RelevanceScore maps a cosine similarity in [-1, 1] onto [0, 1].
func RelevanceScore(cosine float64) float64 {
	return (cosine + 1) / 2
}

// CosineFromRelevance is the inverse of RelevanceScore.
func CosineFromRelevance(relevance float64) float64 {
	return relevance*2 - 1
}
