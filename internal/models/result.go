package models

// EmbeddingMatch is a segment returned by an embedding store search.
// Score is the cosine similarity between the query and the stored embedding.
type EmbeddingMatch struct {
	Score       float64      `json:"score"`
	EmbeddingID string       `json:"embedding_id"`
	Embedding   []float32    `json:"-"`
	Segment     *TextSegment `json:"segment"`
}

// RetrievedSegment is a retrieval hit after keyword and semantic fusion.
type RetrievedSegment struct {
	Segment       *TextSegment `json:"segment"`
	Score         float64      `json:"score"`
	KeywordScore  float64      `json:"keyword_score"`
	SemanticScore float64      `json:"semantic_score"`
	Rank          int          `json:"rank"`
}

// RagQueryResult is the outcome of a retrieval-augmented question.
type RagQueryResult struct {
	Query              string      `json:"query"`
	RetrievedDocuments []*Document `json:"retrieved_documents"`
	Answer             string      `json:"answer"`
	Context            string      `json:"context"`
}
