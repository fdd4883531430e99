// Package embedding turns text into vectors: an OpenAI-compatible API
// client, a local ONNX model, a deterministic mock, and an LRU cache that
// wraps any of them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyInput is returned when there is nothing to embed.
	ErrEmptyInput = errors.New("embedding: empty input")
	// ErrInvalidVector is returned by Validate for vectors with NaN or Inf components.
	ErrInvalidVector = errors.New("embedding: invalid vector")
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Validate rejects empty vectors and vectors containing NaN or Inf.
func Validate(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: no components", ErrInvalidVector)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidVector, i, v)
		}
	}
	return nil
}
