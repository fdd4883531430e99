// Package rag answers questions from indexed documents: it retrieves the
// documents relevant to a question, places them in the prompt and asks the
// chat model.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/indexer"
	"github.com/LangChat/ai-tutorials/internal/llm"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/search"
	"github.com/LangChat/ai-tutorials/internal/storage"
)

const promptTemplate = "Answer the question based on the following documents. " +
	"If the documents do not contain the answer, say that you don't know.\n\n%s\n\nQuestion: %s"

// System ties together indexing, retrieval and generation.
type System struct {
	indexer   *indexer.Indexer
	retriever *search.Retriever
	storage   storage.Storage
	model     llm.StreamingChatModel
	minScore  float64
	logger    *zap.Logger
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *System) { s.logger = l }
}

// WithMinScore drops retrieved segments scoring below min.
func WithMinScore(min float64) Option {
	return func(s *System) { s.minScore = min }
}

// NewSystem creates a RAG system. Documents are resolved through st.
func NewSystem(idx *indexer.Indexer, r *search.Retriever, st storage.Storage, model llm.StreamingChatModel, opts ...Option) *System {
	s := &System{
		indexer:   idx,
		retriever: r,
		storage:   st,
		model:     model,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexDocument splits, embeds and stores a document.
func (s *System) IndexDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	return s.indexer.IndexDocument(ctx, input)
}

// Retrieve returns the documents owning the topK segments most relevant to
// query, without duplicates, in the order their best segment ranked.
func (s *System) Retrieve(ctx context.Context, query string, topK int) ([]*models.Document, error) {
	segs, err := s.retriever.Retrieve(ctx, &models.RetrievalQuery{Query: query, TopK: topK, MinScore: s.minScore})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	seen := make(map[string]bool, len(segs))
	docs := make([]*models.Document, 0, len(segs))
	for _, seg := range segs {
		id := seg.Segment.DocumentID
		if id == "" {
			id = seg.Segment.MetadataString(models.MetaDocumentID)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		doc, err := s.storage.GetDocument(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("segment references missing document", zap.String("document_id", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// BuildContext renders documents as numbered blocks for the prompt.
func BuildContext(docs []*models.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "[Document %d: %s]\n%s\n\n", i+1, doc.Title, doc.Content)
	}
	return b.String()
}

// BuildPrompt wraps the context and question in the answering instructions.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}

// Query answers question from the topK most relevant segments. When nothing
// relevant is found the model is still asked, with an empty context.
func (s *System) Query(ctx context.Context, question string, topK int) (*models.RagQueryResult, error) {
	return s.query(ctx, question, topK, nil)
}

// QueryStream is like Query but passes answer tokens to h as they are generated.
func (s *System) QueryStream(ctx context.Context, question string, topK int, h llm.StreamHandler) (*models.RagQueryResult, error) {
	return s.query(ctx, question, topK, h)
}

func (s *System) query(ctx context.Context, question string, topK int, h llm.StreamHandler) (*models.RagQueryResult, error) {
	start := time.Now()
	docs, err := s.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	contextText := BuildContext(docs)
	req := &llm.ChatRequest{Messages: []models.ChatMessage{
		models.UserMessage(BuildPrompt(contextText, question)),
	}}

	var resp *llm.ChatResponse
	if h != nil {
		resp, err = s.model.ChatStream(ctx, req, h)
	} else {
		resp, err = s.model.Chat(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	s.logger.Info("rag query",
		zap.String("query", question),
		zap.Int("documents", len(docs)),
		zap.Duration("took", time.Since(start)),
	)
	return &models.RagQueryResult{
		Query:              question,
		RetrievedDocuments: docs,
		Answer:             resp.Message.Content,
		Context:            contextText,
	}, nil
}
