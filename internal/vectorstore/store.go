// Package vectorstore pairs a vector index with the chunk texts it was built
// from and persists both into an index directory.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/storage"
	"github.com/hyperjump/shiryo/internal/vector"
)

// ErrEmptyInput is returned when there is nothing to build an index from.
var ErrEmptyInput = errors.New("no chunks to index")

// CorruptIndexError reports a persisted index that could not be loaded.
type CorruptIndexError struct {
	Name string
	Path string
	Err  error
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("index %q is corrupt (%s): %v", e.Name, e.Path, e.Err)
}

func (e *CorruptIndexError) Unwrap() error { return e.Err }

// Options configure a new store.
type Options struct {
	Name           string
	IndexType      string
	EmbeddingModel string
}

// Store is an immutable-by-convention set of embedded chunks. Build and Merge
// return new stores; nothing mutates a store after construction.
type Store struct {
	name      string
	model     string
	index     vector.Index
	chunks    []*models.Chunk
	byID      map[string]*models.Chunk
	sources   []*models.SourceFile
	createdAt time.Time
}

// Hit is one similarity search result.
type Hit struct {
	Chunk *models.Chunk
	Score float64
}

// Build creates a store from embedded chunks. Chunks keep their given order;
// positions are reassigned from zero.
func Build(ctx context.Context, opts Options, chunks []*models.Chunk, sources []*models.SourceFile) (*Store, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}
	dim := len(chunks[0].Vector)
	if dim == 0 {
		return nil, fmt.Errorf("chunk %s has no vector", chunks[0].ID)
	}
	return assemble(ctx, opts.Name, opts.IndexType, opts.EmbeddingModel, dim, time.Now().UTC(), chunks, sources)
}

// Merge returns a store holding every entry of base followed by every entry of
// incoming. Entries are not deduplicated. The stores must share dimension and
// embedding model, and their chunk IDs must be disjoint.
func Merge(ctx context.Context, base, incoming *Store) (*Store, error) {
	if base.Dimensions() != incoming.Dimensions() {
		return nil, fmt.Errorf("cannot merge: dimension %d vs %d", base.Dimensions(), incoming.Dimensions())
	}
	if base.model != incoming.model {
		return nil, fmt.Errorf("cannot merge: embedding model %q vs %q", base.model, incoming.model)
	}
	chunks := make([]*models.Chunk, 0, base.Size()+incoming.Size())
	for _, s := range []*Store{base, incoming} {
		ids, vecs, err := s.index.Entries()
		if err != nil {
			return nil, fmt.Errorf("export vectors of %q: %w", s.name, err)
		}
		for i, id := range ids {
			c := *s.byID[id]
			c.Vector = vecs[i]
			chunks = append(chunks, &c)
		}
	}
	sources := append(append([]*models.SourceFile(nil), base.sources...), incoming.sources...)
	created := base.createdAt
	if incoming.createdAt.Before(created) {
		created = incoming.createdAt
	}
	name := base.name
	if name == "" {
		name = incoming.name
	}
	return assemble(ctx, name, base.index.Type(), base.model, base.Dimensions(), created, chunks, sources)
}

func assemble(ctx context.Context, name, indexType, model string, dim int, created time.Time, chunks []*models.Chunk, sources []*models.SourceFile) (*Store, error) {
	idx, err := vector.New(indexType, dim)
	if err != nil {
		return nil, err
	}
	s := &Store{
		name:      name,
		model:     model,
		index:     idx,
		chunks:    make([]*models.Chunk, len(chunks)),
		byID:      make(map[string]*models.Chunk, len(chunks)),
		sources:   sources,
		createdAt: created,
	}
	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) != dim {
			_ = idx.Close()
			return nil, fmt.Errorf("chunk %s: vector dimension %d, expected %d", c.ID, len(c.Vector), dim)
		}
		if _, dup := s.byID[c.ID]; dup {
			_ = idx.Close()
			return nil, fmt.Errorf("duplicate chunk id %s", c.ID)
		}
		cp := &models.Chunk{ID: c.ID, Source: c.Source, Content: c.Content, Position: i}
		s.chunks[i] = cp
		s.byID[c.ID] = cp
		ids[i] = c.ID
		vecs[i] = c.Vector
	}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return s, nil
}

// Name returns the index name the store belongs to.
func (s *Store) Name() string { return s.name }

// Size returns the number of embedded chunks.
func (s *Store) Size() int { return len(s.chunks) }

// Dimensions returns the vector dimension.
func (s *Store) Dimensions() int { return s.index.Dimensions() }

// EmbeddingModel returns the model the vectors were produced with.
func (s *Store) EmbeddingModel() string { return s.model }

// IndexType returns the vector index type.
func (s *Store) IndexType() string { return s.index.Type() }

// Chunks returns the chunks in position order. Callers must not modify them.
func (s *Store) Chunks() []*models.Chunk { return s.chunks }

// Sources returns the per-file records of the store.
func (s *Store) Sources() []*models.SourceFile { return s.sources }

// SimilaritySearch returns the min(k, Size) chunks most similar to query, best first.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	results, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		c, ok := s.byID[r.ID]
		if !ok {
			return nil, fmt.Errorf("vector %s has no chunk", r.ID)
		}
		hits = append(hits, Hit{Chunk: c, Score: r.Score})
	}
	return hits, nil
}

// Save writes the docstore and vector file into dir, which must not already hold them.
func (s *Store) Save(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	vecFile, ok := layout.VectorFiles[s.index.Type()]
	if !ok {
		return fmt.Errorf("no file name for index type %s", s.index.Type())
	}
	if err := s.index.Save(filepath.Join(dir, vecFile)); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}

	ds, err := storage.NewSQLiteDocstore(filepath.Join(dir, layout.DocstoreFile))
	if err != nil {
		return err
	}
	if err := s.writeDocstore(ctx, ds); err != nil {
		_ = ds.Close()
		return fmt.Errorf("save docstore: %w", err)
	}
	return ds.Close()
}

func (s *Store) writeDocstore(ctx context.Context, ds storage.Docstore) error {
	if err := ds.InsertChunks(ctx, s.chunks); err != nil {
		return err
	}
	if err := ds.PutSources(ctx, s.sources); err != nil {
		return err
	}
	return ds.PutMeta(ctx, &storage.Meta{
		IndexName:      s.name,
		EmbeddingModel: s.model,
		Dimensions:     s.index.Dimensions(),
		IndexType:      s.index.Type(),
		ChunkCount:     len(s.chunks),
		CreatedAt:      s.createdAt,
		UpdatedAt:      time.Now().UTC(),
	})
}

// Load reads the store persisted in dir. Any inconsistency between the
// docstore and the vector file yields a *CorruptIndexError.
func Load(ctx context.Context, name, dir string) (*Store, error) {
	corrupt := func(path string, err error) error {
		return &CorruptIndexError{Name: name, Path: path, Err: err}
	}
	dsPath := filepath.Join(dir, layout.DocstoreFile)
	ds, err := storage.OpenSQLiteDocstore(dsPath)
	if err != nil {
		return nil, corrupt(dsPath, err)
	}
	defer ds.Close()

	meta, err := ds.GetMeta(ctx)
	if err != nil {
		return nil, corrupt(dsPath, err)
	}
	chunks, err := ds.Chunks(ctx)
	if err != nil {
		return nil, corrupt(dsPath, err)
	}
	sources, err := ds.Sources(ctx)
	if err != nil {
		return nil, corrupt(dsPath, err)
	}
	if len(chunks) != meta.ChunkCount {
		return nil, corrupt(dsPath, fmt.Errorf("%d chunks, metadata says %d", len(chunks), meta.ChunkCount))
	}

	vecFile, ok := layout.VectorFiles[meta.IndexType]
	if !ok {
		return nil, corrupt(dsPath, fmt.Errorf("unknown index type %q", meta.IndexType))
	}
	vecPath := filepath.Join(dir, vecFile)
	idx, err := vector.New(meta.IndexType, meta.Dimensions)
	if err != nil {
		return nil, corrupt(vecPath, err)
	}
	if err := idx.Load(vecPath); err != nil {
		_ = idx.Close()
		return nil, corrupt(vecPath, err)
	}
	ids, _, err := idx.Entries()
	if err != nil {
		_ = idx.Close()
		return nil, corrupt(vecPath, err)
	}
	if len(ids) != len(chunks) {
		_ = idx.Close()
		return nil, corrupt(vecPath, fmt.Errorf("%d vectors for %d chunks", len(ids), len(chunks)))
	}

	s := &Store{
		name:      name,
		model:     meta.EmbeddingModel,
		index:     idx,
		chunks:    chunks,
		byID:      make(map[string]*models.Chunk, len(chunks)),
		sources:   sources,
		createdAt: meta.CreatedAt,
	}
	for i, c := range chunks {
		if c.Position != i || ids[i] != c.ID {
			_ = idx.Close()
			return nil, corrupt(vecPath, fmt.Errorf("vector %d is %s, chunk is %s", i, ids[i], c.ID))
		}
		s.byID[c.ID] = c
	}
	return s, nil
}

// Close releases the vector index.
func (s *Store) Close() error {
	return s.index.Close()
}
