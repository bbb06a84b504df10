package answer

import (
	"context"

	"github.com/hyperjump/shiryo/internal/models"
)

// ExtractiveGenerator answers without a language model by returning the best
// chunks verbatim. History is ignored.
type ExtractiveGenerator struct {
	maxContext int
}

// NewExtractiveGenerator creates a generator that returns at most maxContext characters.
func NewExtractiveGenerator(maxContext int) *ExtractiveGenerator {
	return &ExtractiveGenerator{maxContext: maxContext}
}

// Name returns "extractive".
func (g *ExtractiveGenerator) Name() string { return "extractive" }

// Answer returns the chunk contents joined best first.
func (g *ExtractiveGenerator) Answer(_ context.Context, _ string, _ []models.Turn, chunks []*models.ChunkHit) (string, error) {
	if len(chunks) == 0 {
		return "", ErrNoContext
	}
	return contextText(chunks, g.maxContext), nil
}
