package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/indexer"
	"github.com/LangChat/ai-tutorials/internal/keyword"
	"github.com/LangChat/ai-tutorials/internal/llm"
	"github.com/LangChat/ai-tutorials/internal/memory"
	"github.com/LangChat/ai-tutorials/internal/rag"
	"github.com/LangChat/ai-tutorials/internal/search"
	"github.com/LangChat/ai-tutorials/internal/server"
	"github.com/LangChat/ai-tutorials/internal/storage"
	"github.com/LangChat/ai-tutorials/internal/vector"
)

// Components holds initialized services. Model and RAG are nil unless a
// chat model was requested.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	Store        vector.EmbeddingStore
	KeywordIndex keyword.KeywordIndex
	Indexer      *indexer.Indexer
	Retriever    *search.Retriever
	Model        llm.StreamingChatModel
	RAG          *rag.System
	Memories     *memory.Store
}

// Close releases every component that holds resources.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// Services returns the components the HTTP API serves.
func (c *Components) Services() server.Services {
	return server.Services{
		Embedder: c.Embedder,
		Indexer:  c.Indexer,
		Storage:  c.Storage,
		Store:    c.Store,
		RAG:      c.RAG,
		Model:    c.Model,
		Memories: c.Memories,
	}
}

// initializeComponents opens storage and the keyword index, builds the
// embedder and in-memory embedding store, and restores persisted segments
// into them. With withModel set it also builds the chat model, the RAG
// system and the chat memory store.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withModel bool) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.Embedder, err = embedding.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Store = vector.NewMemoryStore(c.Embedder.Dimensions())

	c.Indexer, err = indexer.NewIndexer(c.Storage, c.Embedder, c.Store, c.KeywordIndex, &cfg.RAG, indexer.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize indexer: %w", err)
	}
	restored, err := c.Indexer.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore embeddings: %w", err)
	}
	logger.Debug("embeddings restored", zap.Int("segments", restored))

	c.Retriever = search.NewRetriever(c.Embedder, c.Store, &cfg.RAG,
		search.WithKeywordIndex(c.KeywordIndex, c.Storage),
		search.WithLogger(logger),
	)

	if !withModel {
		return c, nil
	}
	c.Model, err = llm.New(&cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}
	c.RAG = rag.NewSystem(c.Indexer, c.Retriever, c.Storage, c.Model,
		rag.WithMinScore(cfg.RAG.MinScore),
		rag.WithLogger(logger),
	)
	memCfg := cfg.Memory
	c.Memories = memory.NewStore(memCfg.SessionTTL, func(id string) (memory.ChatMemory, error) {
		return memory.New(&memCfg, id, logger)
	})
	return c, nil
}
