package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/shiryo/pkg/utils"
)

// FlatIndex is an in-memory vector index using brute-force inner product search.
type FlatIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (m *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (m *FlatIndex) Dimensions() int {
	return m.dimensions
}

// Add appends vectors with the given IDs. Nothing is added if any vector has the wrong dimension.
func (m *FlatIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k vectors by inner product.
func (m *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	scores := make([]Result, len(m.ids))
	for i, vec := range m.vectors {
		scores[i] = Result{ID: m.ids[i], Position: i, Score: utils.Dot(query, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Entries returns copies of all IDs and vectors in insertion order.
func (m *FlatIndex) Entries() ([]string, [][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, len(m.ids))
	copy(ids, m.ids)
	vecs := make([][]float32, len(m.vectors))
	for i, v := range m.vectors {
		vecs[i] = append([]float32(nil), v...)
	}
	return ids, vecs, nil
}

// Save writes the index to path in the checksummed flat format.
func (m *FlatIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return writeFile(path, flatMagic, m.dimensions, m.ids, m.vectors)
}

// Load replaces the contents with the index stored at path. The stored
// dimension must match; any decoding problem wraps ErrCorrupt.
func (m *FlatIndex) Load(path string) error {
	dim, ids, vecs, err := readFile(path, flatMagic)
	if err != nil {
		return err
	}
	if dim != m.dimensions {
		return fmt.Errorf("%w: file has dimension %d, index expects %d", ErrCorrupt, dim, m.dimensions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = ids
	m.vectors = vecs
	return nil
}

// Size returns the number of vectors in the index.
func (m *FlatIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for FlatIndex.
func (m *FlatIndex) Close() error {
	return nil
}
