// Package vector holds raw embedding vectors keyed by chunk ID and answers
// nearest-neighbour queries by cosine similarity.
package vector

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when a persisted index cannot be decoded.
var ErrCorrupt = errors.New("corrupt vector index")

// Index stores vectors in insertion order and searches them by inner product.
// Vectors are expected to be L2-normalized so scores are cosine similarities.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k hits, best first; equal scores keep insertion order.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	// Entries returns every stored ID and vector in insertion order.
	Entries() (ids []string, vectors [][]float32, err error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Result is a single search hit. Position is the insertion position of the vector.
type Result struct {
	ID       string
	Position int
	Score    float64
}
