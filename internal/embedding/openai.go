package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// The embeddings endpoint accepts at most this many inputs per request.
const openAIMaxBatch = 2048

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
	parallel   int
	logger     *zap.Logger
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL    string
	batchSize  int
	parallel   int
	logger     *zap.Logger
	clientOpts []option.RequestOption
}

// WithBaseURL points the client at an OpenAI-compatible provider.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithBatchSize caps the number of texts per request (at most 2048).
func WithBatchSize(n int) OpenAIOption {
	return func(c *openAIConfig) { c.batchSize = n }
}

// WithParallelism sets how many batch requests may be in flight at once.
func WithParallelism(n int) OpenAIOption {
	return func(c *openAIConfig) { c.parallel = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(c *openAIConfig) { c.logger = l }
}

// WithRequestOptions appends raw client options, e.g. a custom HTTP client.
func WithRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(c *openAIConfig) { c.clientOpts = append(c.clientOpts, opts...) }
}

// NewOpenAIEmbedder creates an embedder for model producing vectors of the given dimensions.
func NewOpenAIEmbedder(apiKey, model string, dimensions int, opts ...OpenAIOption) *OpenAIEmbedder {
	cfg := openAIConfig{batchSize: openAIMaxBatch, parallel: 4}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.batchSize <= 0 || cfg.batchSize > openAIMaxBatch {
		cfg.batchSize = openAIMaxBatch
	}
	if cfg.parallel <= 0 {
		cfg.parallel = 1
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	clientOpts = append(clientOpts, cfg.clientOpts...)
	client := openai.NewClient(clientOpts...)

	return &OpenAIEmbedder{
		client:     &client,
		model:      model,
		dimensions: dimensions,
		batchSize:  cfg.batchSize,
		parallel:   cfg.parallel,
		logger:     cfg.logger,
	}
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, splitting them into batches that are sent concurrently.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyInput)
		}
	}

	result := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i := 0; i < len(texts); i += e.batchSize {
		start, end := i, min(i+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.callAPI(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
			}
			copy(result[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if e.logger != nil {
		e.logger.Debug("embedded texts", zap.String("model", e.model), zap.Int("count", len(texts)))
	}
	return result, nil
}

// Dimensions returns the configured vector dimensionality.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

func (e *OpenAIEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          e.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	// ada-002 and other legacy models reject the dimensions parameter.
	if strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		if e.dimensions > 0 && len(vec) != e.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", idx, len(vec), e.dimensions)
		}
		if err := Validate(vec); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", idx, err)
		}
		vecs[idx] = vec
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
