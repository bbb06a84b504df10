package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/shiryo/internal/models"
)

func TestSQLiteDocstore_chunksAndMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "docstore.db")
	store, err := NewSQLiteDocstore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := store.GetMeta(ctx); !errors.Is(err, ErrNoMeta) {
		t.Errorf("empty docstore: expected ErrNoMeta, got %v", err)
	}

	chunks := []*models.Chunk{
		{ID: "c2", Source: "b.pdf", Content: "second", Position: 1},
		{ID: "c1", Source: "a.pdf", Content: "first", Position: 0},
	}
	if err := store.InsertChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	now := time.Now().Truncate(time.Millisecond)
	meta := &Meta{IndexName: "docs", EmbeddingModel: "hash-8", Dimensions: 8, IndexType: "flat", ChunkCount: 2, CreatedAt: now, UpdatedAt: now}
	if err := store.PutMeta(ctx, meta); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLiteDocstore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Chunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[1].Content != "second" {
		t.Errorf("Chunks: %+v", got)
	}
	n, err := reopened.CountChunks(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountChunks = %d, %v", n, err)
	}
	c, err := reopened.GetChunk(ctx, "c2")
	if err != nil || c.Source != "b.pdf" {
		t.Errorf("GetChunk: %+v, %v", c, err)
	}
	if _, err := reopened.GetChunk(ctx, "nope"); err == nil {
		t.Error("expected error for missing chunk")
	}

	m, err := reopened.GetMeta(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.IndexName != "docs" || m.Dimensions != 8 || m.ChunkCount != 2 || !m.CreatedAt.Equal(now) {
		t.Errorf("GetMeta: %+v", m)
	}
}

func TestSQLiteDocstore_duplicateChunkIDRollsBack(t *testing.T) {
	store, err := NewSQLiteDocstore(filepath.Join(t.TempDir(), "docstore.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	err = store.InsertChunks(ctx, []*models.Chunk{
		{ID: "same", Content: "a", Position: 0},
		{ID: "same", Content: "b", Position: 1},
	})
	if err == nil {
		t.Fatal("expected unique constraint error")
	}
	if n, _ := store.CountChunks(ctx); n != 0 {
		t.Errorf("transaction should roll back, found %d chunks", n)
	}
}

func TestSQLiteDocstore_sources(t *testing.T) {
	store, err := NewSQLiteDocstore(filepath.Join(t.TempDir(), "docstore.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err = store.PutSources(ctx, []*models.SourceFile{
		{FileName: "old.pdf", Digest: "sha256:aa", ChunkCount: 3, IngestedAt: t0},
		{FileName: "new.pdf", Digest: "sha256:bb", ChunkCount: 1, IngestedAt: t0.Add(time.Hour)},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.Sources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].FileName != "new.pdf" || got[1].ChunkCount != 3 {
		t.Errorf("Sources: %+v", got)
	}
}

func TestOpenSQLiteDocstore_missing(t *testing.T) {
	if _, err := OpenSQLiteDocstore(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error for missing docstore")
	}
}
