// Package search retrieves the text segments most relevant to a query,
// optionally fusing keyword and semantic scores.
package search

import (
	"sort"

	"github.com/LangChat/ai-tutorials/internal/keyword"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/vector"
)

// FusedResult holds a segment ID and its fused keyword/semantic scores.
type FusedResult struct {
	SegmentID     string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores maps each match's cosine similarity onto [0,1].
func NormalizeSemanticScores(matches []*models.EmbeddingMatch) map[string]float64 {
	normalized := make(map[string]float64, len(matches))
	for _, m := range matches {
		normalized[m.EmbeddingID] = vector.RelevanceScore(m.Score)
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights and returns
// results sorted by fused score, highest first; ties are ordered by ID.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{SegmentID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if result, exists := scoreMap[id]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{SegmentID: id, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = keywordWeight*result.KeywordScore + semanticWeight*result.SemanticScore
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SegmentID < results[j].SegmentID
	})
	return results
}
