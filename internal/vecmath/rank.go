package vecmath

import (
	"fmt"
	"sort"
)

// SimilarityResult pairs a candidate's position in the input with its
// cosine similarity to the query.
type SimilarityResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (r SimilarityResult) String() string {
	return fmt.Sprintf("#%d (%.4f)", r.Index, r.Score)
}

// FindMostSimilar returns the candidate with the highest cosine similarity to
// query. When several candidates share the best score, the lowest index wins.
func FindMostSimilar(query []float32, candidates [][]float32) (SimilarityResult, error) {
	if len(candidates) == 0 {
		return SimilarityResult{}, fmt.Errorf("%w: 0 candidates", ErrEmptyInput)
	}
	best := SimilarityResult{Index: -1}
	for i, c := range candidates {
		score, err := CosineSimilarity(query, c)
		if err != nil {
			return SimilarityResult{}, fmt.Errorf("candidate %d: %w", i, err)
		}
		if best.Index < 0 || score > best.Score {
			best = SimilarityResult{Index: i, Score: score}
		}
	}
	return best, nil
}

// FindTopKSimilar scores every candidate against query and returns the k best,
// highest score first. Candidates with equal scores keep their input order.
// A k outside [1, len(candidates)] means all candidates.
func FindTopKSimilar(query []float32, candidates [][]float32, k int) ([]SimilarityResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: 0 candidates", ErrEmptyInput)
	}
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}
	results := make([]SimilarityResult, len(candidates))
	for i, c := range candidates {
		score, err := CosineSimilarity(query, c)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		results[i] = SimilarityResult{Index: i, Score: score}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results[:k], nil
}
