package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/vecmath"
)

// MemoryStore is an in-memory embedding store using brute-force cosine
// ranking over every stored vector. Suitable for tutorials and small corpora.
type MemoryStore struct {
	dimensions int
	entries    []entry
	byID       map[string]int
	mu         sync.RWMutex
}

type entry struct {
	id      string
	vector  []float32
	segment *models.TextSegment
}

var _ EmbeddingStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store for vectors of the given dimension. A
// dimension of 0 is fixed by the first vector added.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		dimensions: dimensions,
		byID:       make(map[string]int),
	}
}

// Add stores embedding with segment.
func (m *MemoryStore) Add(ctx context.Context, embedding []float32, segment *models.TextSegment) (string, error) {
	ids, err := m.AddAll(ctx, [][]float32{embedding}, []*models.TextSegment{segment})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddAll stores embeddings with their segments; segments[i] may be nil.
// Either all entries are added or none.
func (m *MemoryStore) AddAll(ctx context.Context, embeddings [][]float32, segments []*models.TextSegment) ([]string, error) {
	if len(embeddings) != len(segments) {
		return nil, fmt.Errorf("embeddings and segments length mismatch: %d vs %d", len(embeddings), len(segments))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	dims := m.dimensions
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		if dims == 0 {
			dims = len(vec)
		}
		if len(vec) != dims {
			return nil, fmt.Errorf("embedding %d: %w: %d vs %d", i, vecmath.ErrDimensionMismatch, len(vec), dims)
		}
		if vecmath.Norm(vec) == 0 {
			return nil, fmt.Errorf("embedding %d: %w: zero-norm vector", i, vecmath.ErrUndefinedSimilarity)
		}
	}
	m.dimensions = dims

	ids := make([]string, len(embeddings))
	for i, vec := range embeddings {
		seg := cloneSegment(segments[i])
		id := seg.ID
		if id == "" {
			id = uuid.New().String()
			seg.ID = id
		}
		e := entry{id: id, vector: append([]float32(nil), vec...), segment: seg}
		if pos, ok := m.byID[id]; ok {
			m.entries[pos] = e
		} else {
			m.byID[id] = len(m.entries)
			m.entries = append(m.entries, e)
		}
		ids[i] = id
	}
	return ids, nil
}

// Search ranks stored embeddings by cosine similarity to req.QueryEmbedding.
func (m *MemoryStore) Search(ctx context.Context, req *models.SearchRequest) ([]*models.EmbeddingMatch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([][]float32, 0, len(m.entries))
	positions := make([]int, 0, len(m.entries))
	for i, e := range m.entries {
		if matchesFilter(e.segment, req.Filter) {
			candidates = append(candidates, e.vector)
			positions = append(positions, i)
		}
	}
	if len(candidates) == 0 {
		return []*models.EmbeddingMatch{}, nil
	}

	ranked, err := vecmath.FindTopKSimilar(req.QueryEmbedding, candidates, 0)
	if err != nil {
		return nil, err
	}
	matches := make([]*models.EmbeddingMatch, 0, req.MaxResults)
	for _, r := range ranked {
		if r.Score < req.MinScore || len(matches) == req.MaxResults {
			break
		}
		e := m.entries[positions[r.Index]]
		matches = append(matches, &models.EmbeddingMatch{
			Score:       r.Score,
			EmbeddingID: e.id,
			Embedding:   e.vector,
			Segment:     e.segment,
		})
	}
	return matches, nil
}

// Remove deletes entries by ID. Unknown IDs are ignored.
func (m *MemoryStore) Remove(ctx context.Context, ids ...string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retain(func(e entry) bool { return !drop[e.id] })
	return nil
}

// RemoveByFilter deletes entries whose segment metadata matches filter.
func (m *MemoryStore) RemoveByFilter(ctx context.Context, filter map[string]string) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("filter cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.entries)
	m.retain(func(e entry) bool { return !matchesFilter(e.segment, filter) })
	return before - len(m.entries), nil
}

// RemoveAll empties the store. The dimension stays fixed.
func (m *MemoryStore) RemoveAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.byID = make(map[string]int)
	return nil
}

// All returns every stored entry in insertion order with a zero score.
func (m *MemoryStore) All(ctx context.Context) ([]*models.EmbeddingMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.EmbeddingMatch, len(m.entries))
	for i, e := range m.entries {
		out[i] = &models.EmbeddingMatch{EmbeddingID: e.id, Embedding: e.vector, Segment: e.segment}
	}
	return out, nil
}

// Size returns the number of stored embeddings.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Dimensions returns the vector dimension, or 0 before the first Add on an
// unsized store.
func (m *MemoryStore) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

// retain keeps entries for which keep returns true. Caller holds the write lock.
func (m *MemoryStore) retain(keep func(entry) bool) {
	kept := m.entries[:0]
	m.byID = make(map[string]int, len(m.entries))
	for _, e := range m.entries {
		if keep(e) {
			m.byID[e.id] = len(kept)
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = entry{}
	}
	m.entries = kept
}

func matchesFilter(seg *models.TextSegment, filter map[string]string) bool {
	for k, v := range filter {
		if seg.MetadataString(k) != v {
			return false
		}
	}
	return true
}

func cloneSegment(s *models.TextSegment) *models.TextSegment {
	if s == nil {
		return &models.TextSegment{}
	}
	c := *s
	c.Embedding = nil
	if s.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
