// Package storage persists chunk texts, provenance and index metadata in a
// SQLite docstore kept next to each index's vector file.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/shiryo/internal/models"
)

// ErrNoMeta is returned when a docstore has no metadata row, e.g. an interrupted write.
var ErrNoMeta = errors.New("docstore metadata missing")

// Meta describes the vectors paired with a docstore.
type Meta struct {
	IndexName      string
	EmbeddingModel string
	Dimensions     int
	IndexType      string
	ChunkCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Docstore defines chunk and source persistence for one index.
type Docstore interface {
	PutMeta(ctx context.Context, meta *Meta) error
	GetMeta(ctx context.Context) (*Meta, error)

	// InsertChunks stores chunks in a single transaction; Position orders them.
	InsertChunks(ctx context.Context, chunks []*models.Chunk) error
	// Chunks returns every chunk ordered by position. Vectors are not stored here.
	Chunks(ctx context.Context) ([]*models.Chunk, error)
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)

	PutSources(ctx context.Context, sources []*models.SourceFile) error
	Sources(ctx context.Context) ([]*models.SourceFile, error)

	Close() error
}
