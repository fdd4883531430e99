package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/keyword"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/storage"
	"github.com/LangChat/ai-tutorials/internal/vector"
)

// minCandidates is the smallest candidate pool fetched from each index in
// hybrid mode before fusion.
const minCandidates = 20

// Retriever finds the segments most relevant to a text query.
type Retriever struct {
	embedder embedding.Embedder
	store    vector.EmbeddingStore
	keyword  keyword.KeywordIndex
	storage  storage.Storage
	config   *config.RAGConfig
	logger   *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithKeywordIndex enables hybrid retrieval when cfg.Hybrid is set.
// Keyword hits are resolved to segments through st.
func WithKeywordIndex(kw keyword.KeywordIndex, st storage.Storage) RetrieverOption {
	return func(r *Retriever) {
		r.keyword = kw
		r.storage = st
	}
}

// NewRetriever creates a retriever over the given embedding store.
func NewRetriever(embedder embedding.Embedder, store vector.EmbeddingStore, cfg *config.RAGConfig, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hybrid reports whether keyword scores take part in ranking.
func (r *Retriever) Hybrid() bool {
	return r.config.Hybrid && r.keyword != nil && r.storage != nil
}

// Retrieve returns up to q.TopK segments, best first. In semantic mode
// Score is the cosine similarity and segments below q.MinScore are dropped;
// in hybrid mode Score is the weighted sum of the max-normalized keyword
// score and the [0,1] relevance score.
func (r *Retriever) Retrieve(ctx context.Context, q *models.RetrievalQuery) ([]*models.RetrievedSegment, error) {
	if err := ProcessQuery(q); err != nil {
		return nil, err
	}
	if !r.Hybrid() {
		return r.semantic(ctx, q)
	}
	return r.hybrid(ctx, q)
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	return vec, nil
}

func (r *Retriever) semantic(ctx context.Context, q *models.RetrievalQuery) ([]*models.RetrievedSegment, error) {
	vec, err := r.embedQuery(ctx, q.Query)
	if err != nil {
		return nil, err
	}
	matches, err := r.store.Search(ctx, &models.SearchRequest{
		QueryEmbedding: vec,
		MaxResults:     q.TopK,
		MinScore:       q.MinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	out := make([]*models.RetrievedSegment, len(matches))
	for i, m := range matches {
		out[i] = &models.RetrievedSegment{
			Segment:       m.Segment,
			Score:         m.Score,
			SemanticScore: m.Score,
			Rank:          i + 1,
		}
	}
	r.logger.Debug("retrieved segments", zap.String("query", q.Query), zap.Int("count", len(out)))
	return out, nil
}

func (r *Retriever) hybrid(ctx context.Context, q *models.RetrievalQuery) ([]*models.RetrievedSegment, error) {
	candidates := max(q.TopK*4, minCandidates)

	var (
		matches []*models.EmbeddingMatch
		hits    []*keyword.KeywordResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := r.embedQuery(gctx, q.Query)
		if err != nil {
			return err
		}
		matches, err = r.store.Search(gctx, &models.SearchRequest{
			QueryEmbedding: vec,
			MaxResults:     candidates,
			MinScore:       q.MinScore,
		})
		if err != nil {
			return fmt.Errorf("vector search failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		hits, err = r.keyword.Search(gctx, q.Query, candidates, nil)
		if err != nil {
			return fmt.Errorf("keyword search failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	segments := make(map[string]*models.TextSegment, len(matches)+len(hits))
	for _, m := range matches {
		segments[m.EmbeddingID] = m.Segment
	}
	if err := r.resolveKeywordHits(ctx, hits, segments); err != nil {
		return nil, err
	}

	fused := Fuse(NormalizeKeywordScores(hits), NormalizeSemanticScores(matches), r.config.KeywordWeight, r.config.SemanticWeight)
	out := make([]*models.RetrievedSegment, 0, q.TopK)
	for _, f := range fused {
		seg, ok := segments[f.SegmentID]
		if !ok {
			continue
		}
		out = append(out, &models.RetrievedSegment{
			Segment:       seg,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Rank:          len(out) + 1,
		})
		if len(out) == q.TopK {
			break
		}
	}
	r.logger.Debug("retrieved segments (hybrid)",
		zap.String("query", q.Query),
		zap.Int("semantic", len(matches)),
		zap.Int("keyword", len(hits)),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// resolveKeywordHits loads the segments of keyword hits that the semantic
// search did not return, one storage read per document.
func (r *Retriever) resolveKeywordHits(ctx context.Context, hits []*keyword.KeywordResult, segments map[string]*models.TextSegment) error {
	loaded := make(map[string]bool)
	for _, h := range hits {
		if _, ok := segments[h.ID]; ok || h.DocumentID == "" || loaded[h.DocumentID] {
			continue
		}
		loaded[h.DocumentID] = true
		segs, err := r.storage.GetSegmentsByDocumentID(ctx, h.DocumentID)
		if err != nil {
			return fmt.Errorf("load segments of %s: %w", h.DocumentID, err)
		}
		for _, s := range segs {
			if _, ok := segments[s.ID]; !ok {
				segments[s.ID] = s
			}
		}
	}
	return nil
}
