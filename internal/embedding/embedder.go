// Package embedding turns text into vectors. Providers: OpenAI, local ONNX
// models and a deterministic feature-hashing embedder.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Model identifies the embedding space; vectors from different models must not be mixed.
	Model() string
	Close() error
}

// ProviderError reports a failure of the upstream embedding provider. Err is the unchanged cause.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// EmbedAll embeds texts in batches of batchSize, preserving order.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, &ProviderError{Provider: e.Model(), Err: fmt.Errorf("got %d embeddings for %d texts", len(vecs), end-start)}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
