package models

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned by Validate for a blank query.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchRequest asks an embedding store for the segments nearest to an
// embedding. Filter entries must match segment metadata exactly.
type SearchRequest struct {
	QueryEmbedding []float32         `json:"query_embedding"`
	MaxResults     int               `json:"max_results,omitempty"`
	MinScore       float64           `json:"min_score,omitempty"`
	Filter         map[string]string `json:"filter,omitempty"`
}

// Validate checks the request and fills defaults.
func (r *SearchRequest) Validate() error {
	if len(r.QueryEmbedding) == 0 {
		return fmt.Errorf("query embedding cannot be empty")
	}
	if r.MaxResults <= 0 {
		r.MaxResults = 3
	}
	if r.MinScore < -1 || r.MinScore > 1 {
		return fmt.Errorf("min score %v outside [-1, 1]", r.MinScore)
	}
	return nil
}

// RetrievalQuery is a text query against the knowledge base.
type RetrievalQuery struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// Validate ensures the query is non-empty and clamps TopK to [1, 100],
// defaulting to 3.
func (q *RetrievalQuery) Validate() error {
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.TopK <= 0 {
		q.TopK = 3
	}
	if q.TopK > 100 {
		q.TopK = 100
	}
	return nil
}
