package embedding

import (
	"errors"
	"fmt"

	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
)

// New builds the embedder selected by cfg.Embedding.Provider and wraps it
// in an LRU cache. An ONNX model that fails to load falls back to the mock
// embedder with a warning.
func New(cfg *config.Config, logger *zap.Logger, extra ...option.RequestOption) (Embedder, error) {
	ec := cfg.Embedding
	var base Embedder
	switch ec.Provider {
	case "openai":
		if cfg.Model.APIKey == "" {
			return nil, errors.New("openai embedder: " + config.EnvAPIKey + " is not set")
		}
		base = NewOpenAIEmbedder(cfg.Model.APIKey, ec.ModelName, ec.Dimensions,
			WithBaseURL(cfg.Model.BaseURL),
			WithBatchSize(ec.BatchSize),
			WithLogger(logger),
			WithRequestOptions(extra...),
		)
	case "onnx":
		e, err := NewONNXEmbedder(ec.ModelPath, ec.Dimensions, ec.MaxTokens)
		if err != nil {
			if logger != nil {
				logger.Warn("onnx embedder unavailable, using mock embedder",
					zap.String("model_path", ec.ModelPath), zap.Error(err))
			}
			base = NewMockEmbedder(ec.Dimensions)
		} else {
			base = e
		}
	case "mock":
		base = NewMockEmbedder(ec.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
	if logger != nil {
		logger.Info("embedder initialized",
			zap.String("provider", ec.Provider),
			zap.String("model", ec.ModelName),
			zap.Int("dimensions", base.Dimensions()))
	}
	return NewCachedEmbedder(base, ec.CacheSize), nil
}
