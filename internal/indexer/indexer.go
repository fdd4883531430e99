// Package indexer turns documents into embedded text segments and keeps the
// document store, embedding store and keyword index in step.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/keyword"
	"github.com/LangChat/ai-tutorials/internal/loader"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/storage"
	"github.com/LangChat/ai-tutorials/internal/vector"
)

// ErrEmptyDocument is returned when a document has no text after preprocessing.
var ErrEmptyDocument = errors.New("document has no content")

const restoreBatchSize = 256

// Indexer indexes documents into storage, the embedding store and the
// keyword index. The keyword index is optional.
type Indexer struct {
	storage  storage.Storage
	embedder embedding.Embedder
	store    vector.EmbeddingStore
	keyword  keyword.KeywordIndex
	splitter Splitter
	logger   *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithSplitter overrides the splitter built from the RAG config.
func WithSplitter(s Splitter) IndexerOption {
	return func(idx *Indexer) { idx.splitter = s }
}

// NewIndexer creates an indexer. kw may be nil when keyword search is not used.
func NewIndexer(
	st storage.Storage,
	embedder embedding.Embedder,
	store vector.EmbeddingStore,
	kw keyword.KeywordIndex,
	cfg *config.RAGConfig,
	opts ...IndexerOption,
) (*Indexer, error) {
	idx := &Indexer{
		storage:  st,
		embedder: embedder,
		store:    store,
		keyword:  kw,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.splitter == nil {
		s, err := NewSplitter(cfg.Splitter, cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		idx.splitter = s
	}
	return idx, nil
}

// IndexDocument stores the document, splits it, embeds every segment and
// adds the segments to the embedding store and keyword index. A document
// with the same ID is replaced.
func (idx *Indexer) IndexDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	content := Preprocess(input.Content)
	if content == "" {
		return nil, fmt.Errorf("index %s: %w", input.ID, ErrEmptyDocument)
	}
	title := input.Title
	if title == "" {
		title = input.ID
	}
	doc := &models.Document{
		ID:       input.ID,
		Title:    title,
		Content:  content,
		Metadata: input.Metadata,
	}

	if err := idx.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to replace document: %w", err)
	}
	if err := idx.storage.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	segments := idx.segments(doc)
	if err := idx.embedAndAdd(ctx, doc, segments); err != nil {
		if cleanupErr := idx.DeleteDocument(ctx, doc.ID); cleanupErr != nil {
			idx.logger.Warn("indexer cleanup failed", zap.String("id", doc.ID), zap.Error(cleanupErr))
		}
		return nil, err
	}
	idx.logger.Debug("indexer document indexed",
		zap.String("id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("segments", len(segments)),
	)
	return doc, nil
}

func (idx *Indexer) segments(doc *models.Document) []*models.TextSegment {
	texts := idx.splitter.Split(doc.Content)
	if len(texts) == 0 {
		texts = []string{doc.Content}
	}
	now := time.Now()
	segments := make([]*models.TextSegment, len(texts))
	for i, text := range texts {
		meta := make(map[string]interface{}, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta[models.MetaDocumentID] = doc.ID
		meta[models.MetaTitle] = doc.Title
		segments[i] = &models.TextSegment{
			ID:         fmt.Sprintf("%s_%d", doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Text:       text,
			Metadata:   meta,
			CreatedAt:  now,
		}
	}
	return segments
}

func (idx *Indexer) embedAndAdd(ctx context.Context, doc *models.Document, segments []*models.TextSegment) error {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(segments) {
		return fmt.Errorf("failed to generate embeddings: got %d for %d segments", len(embeddings), len(segments))
	}
	for i := range segments {
		segments[i].Embedding = embeddings[i]
	}
	if err := idx.storage.BatchCreateSegments(ctx, segments); err != nil {
		return fmt.Errorf("failed to store segments: %w", err)
	}
	if _, err := idx.store.AddAll(ctx, embeddings, segments); err != nil {
		return fmt.Errorf("failed to add embeddings: %w", err)
	}
	if idx.keyword == nil {
		return nil
	}
	title := normalizeTitle(doc.Title)
	for _, s := range segments {
		if err := idx.keyword.Index(ctx, s, title); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return nil
}

// normalizeTitle replaces underscores with spaces so that file names like
// "company_profile_2021.pdf" match multi-word keyword queries.
func normalizeTitle(title string) string {
	return strings.ReplaceAll(title, "_", " ")
}

// IndexFile loads and indexes the file at path. If allowedExts is non-empty
// the file's extension must be in it (case-insensitive). A file already
// indexed with the same mtime and size is skipped; skipped reports that.
func (idx *Indexer) IndexFile(ctx context.Context, path string, allowedExts []string) (skipped bool, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	ext := filepath.Ext(absPath)
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return false, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}
	if idx.unchanged(ctx, absPath, info) {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return true, nil
	}

	doc, err := loader.Load(absPath)
	if err != nil {
		return false, err
	}
	if _, err := idx.IndexDocument(ctx, &models.DocumentInput{
		ID:       doc.ID,
		Title:    doc.Title,
		Content:  doc.Content,
		Metadata: doc.Metadata,
	}); err != nil {
		return false, err
	}
	idx.logger.Debug("indexer file indexed", zap.String("path", absPath), zap.String("doc_id", doc.ID))
	return false, nil
}

func (idx *Indexer) unchanged(ctx context.Context, absPath string, info os.FileInfo) bool {
	doc, err := idx.storage.GetDocument(ctx, loader.DocumentID(absPath))
	if err != nil || doc.Metadata == nil {
		return false
	}
	return metaString(doc.Metadata, models.MetaSourcePath) == absPath &&
		metaString(doc.Metadata, models.MetaSourceMtime) == fmt.Sprint(info.ModTime().UnixNano()) &&
		metaString(doc.Metadata, models.MetaSourceSize) == fmt.Sprint(info.Size())
}

func metaString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// IndexDirectory walks dir and indexes each regular file whose extension is
// in allowedExts (all files when empty). Subdirectories are visited only
// when recursive is set. Files that fail to index are logged and skipped.
// Returns the number of files indexed, unchanged files excluded.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string, recursive bool) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		skipped, indexErr := idx.IndexFile(ctx, path, allowedExts)
		if indexErr != nil {
			idx.logger.Warn("indexer failed to index file", zap.String("path", path), zap.Error(indexErr))
			return nil
		}
		if !skipped {
			n++
		}
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// DeleteDocument removes a document from every index and from storage.
// It returns storage.ErrNotFound if the document does not exist.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if _, err := idx.storage.GetDocument(ctx, id); err != nil {
		return err
	}
	if idx.keyword != nil {
		if _, err := idx.keyword.DeleteByDocument(ctx, id); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if _, err := idx.store.RemoveByFilter(ctx, map[string]string{models.MetaDocumentID: id}); err != nil {
		return fmt.Errorf("failed to delete from embedding store: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	idx.logger.Debug("indexer document deleted", zap.String("id", id))
	return nil
}

// DeleteFile removes the document indexed from path, if any.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	err = idx.DeleteDocument(ctx, loader.DocumentID(absPath))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Restore reloads every persisted segment into the embedding store, and into
// the keyword index when that index is empty. It returns the number of
// segments restored.
func (idx *Indexer) Restore(ctx context.Context) (int, error) {
	if err := idx.store.RemoveAll(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear embedding store: %w", err)
	}
	reindexKeywords := false
	if idx.keyword != nil {
		count, err := idx.keyword.DocCount()
		if err != nil {
			return 0, fmt.Errorf("failed to count keyword index: %w", err)
		}
		reindexKeywords = count == 0
	}

	var (
		batch    []*models.TextSegment
		restored int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		embeddings := make([][]float32, len(batch))
		for i, s := range batch {
			embeddings[i] = s.Embedding
		}
		if _, err := idx.store.AddAll(ctx, embeddings, batch); err != nil {
			return fmt.Errorf("failed to restore embeddings: %w", err)
		}
		if reindexKeywords {
			for _, s := range batch {
				if err := idx.keyword.Index(ctx, s, normalizeTitle(s.MetadataString(models.MetaTitle))); err != nil {
					return fmt.Errorf("failed to restore keywords: %w", err)
				}
			}
		}
		restored += len(batch)
		batch = batch[:0]
		return nil
	}
	err := idx.storage.ForEachSegment(ctx, func(s *models.TextSegment) error {
		if len(s.Embedding) == 0 {
			idx.logger.Warn("indexer segment without embedding", zap.String("id", s.ID))
			return nil
		}
		batch = append(batch, s)
		if len(batch) >= restoreBatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return restored, err
	}
	idx.logger.Info("indexer restored segments", zap.Int("segments", restored))
	return restored, nil
}
