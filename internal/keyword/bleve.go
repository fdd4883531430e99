package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/LangChat/ai-tutorials/internal/models"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

var _ KeywordIndex = (*BleveIndex)(nil)

// indexedSegment is the document shape stored in Bleve.
type indexedSegment struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so short
	// queries match exact words.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", text)
	docMapping.AddFieldMappingsAt("title", text)
	kw := bleve.NewKeywordFieldMapping()
	kw.Store = true
	docMapping.AddFieldMappingsAt("document_id", kw)
	im.AddDocumentMapping("segment", docMapping)
	im.DefaultType = "segment"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path
// creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes seg under its ID.
func (b *BleveIndex) Index(ctx context.Context, seg *models.TextSegment, title string) error {
	if seg.ID == "" {
		return fmt.Errorf("segment id cannot be empty")
	}
	return b.index.Index(seg.ID, indexedSegment{DocumentID: seg.DocumentID, Title: title, Text: seg.Text})
}

// Search runs a match query over title and text and returns up to limit
// results, best first. With TitleBoost > 1 title and text are queried
// separately and the scores added, the title score multiplied by the boost.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	var o SearchOptions
	if opts != nil {
		o = *opts
	}
	if o.Fuzziness <= 0 {
		o.Fuzziness = 1
	}

	if o.TitleBoost <= 1 {
		return b.run(ctx, b.buildQuery(query, "", o), limit)
	}

	reqSize := max(limit*2, 50)
	titleHits, err := b.run(ctx, b.buildQuery(query, "title", o), reqSize)
	if err != nil {
		return nil, err
	}
	textHits, err := b.run(ctx, b.buildQuery(query, "text", o), reqSize)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]*KeywordResult)
	for _, h := range textHits {
		merged[h.ID] = h
	}
	for _, h := range titleHits {
		if m, ok := merged[h.ID]; ok {
			m.Score += h.Score * o.TitleBoost
		} else {
			h.Score *= o.TitleBoost
			merged[h.ID] = h
		}
	}
	out := make([]*KeywordResult, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, size int) ([]*KeywordResult, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	req.Fields = []string{"document_id"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		docID, _ := hit.Fields["document_id"].(string)
		out[i] = &KeywordResult{ID: hit.ID, DocumentID: docID, Score: hit.Score}
	}
	return out, nil
}

// buildQuery returns a match query, or a disjunction of per-term fuzzy
// queries when fuzzy matching is enabled. An empty field searches all fields.
func (b *BleveIndex) buildQuery(query, field string, o SearchOptions) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if !o.FuzzyEnabled || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(o.Fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes segments from the index.
func (b *BleveIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// DeleteByDocument removes all segments whose document_id is docID.
func (b *BleveIndex) DeleteByDocument(ctx context.Context, docID string) (int, error) {
	tq := bleve.NewTermQuery(docID)
	tq.SetField("document_id")
	count, err := b.index.DocCount()
	if err != nil {
		return 0, err
	}
	hits, err := b.run(ctx, tq, int(count)+1)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return len(ids), b.Delete(ctx, ids...)
}

// DocCount returns the number of indexed segments.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
