package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiryo/internal/models"
)

// SQLiteDocstore implements Docstore using SQLite. It keeps the default
// rollback journal so a closed docstore is one self-contained file.
type SQLiteDocstore struct {
	db *sql.DB
}

// NewSQLiteDocstore opens or creates a docstore at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteDocstore(dbPath string) (*SQLiteDocstore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create docstore directory: %w", err)
		}
	}
	return open(dbPath)
}

// OpenSQLiteDocstore opens an existing docstore; a missing file is an error.
func OpenSQLiteDocstore(dbPath string) (*SQLiteDocstore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open docstore: %w", err)
	}
	return open(dbPath)
}

func open(dbPath string) (*SQLiteDocstore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docstore: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteDocstore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);

	CREATE TABLE IF NOT EXISTS sources (
		file_name TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		ingested_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PutMeta replaces the metadata.
func (s *SQLiteDocstore) PutMeta(ctx context.Context, meta *Meta) error {
	values := map[string]string{
		"index_name":      meta.IndexName,
		"embedding_model": meta.EmbeddingModel,
		"dimensions":      strconv.Itoa(meta.Dimensions),
		"index_type":      meta.IndexType,
		"chunk_count":     strconv.Itoa(meta.ChunkCount),
		"created_at":      meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":      meta.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// GetMeta returns the metadata or ErrNoMeta.
func (s *SQLiteDocstore) GetMeta(ctx context.Context) (*Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNoMeta
	}

	meta := &Meta{
		IndexName:      values["index_name"],
		EmbeddingModel: values["embedding_model"],
		IndexType:      values["index_type"],
	}
	if meta.Dimensions, err = strconv.Atoi(values["dimensions"]); err != nil {
		return nil, fmt.Errorf("parse dimensions: %w", err)
	}
	if meta.ChunkCount, err = strconv.Atoi(values["chunk_count"]); err != nil {
		return nil, fmt.Errorf("parse chunk_count: %w", err)
	}
	if meta.CreatedAt, err = time.Parse(time.RFC3339Nano, values["created_at"]); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if meta.UpdatedAt, err = time.Parse(time.RFC3339Nano, values["updated_at"]); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return meta, nil
}

// InsertChunks inserts chunks in a transaction.
func (s *SQLiteDocstore) InsertChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (position, id, source, content) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.Position, c.ID, c.Source, c.Content); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Chunks returns all chunks ordered by position.
func (s *SQLiteDocstore) Chunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, id, source, content FROM chunks ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.Position, &c.ID, &c.Source, &c.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteDocstore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var c models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT position, id, source, content FROM chunks WHERE id = ?`, id,
	).Scan(&c.Position, &c.ID, &c.Source, &c.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteDocstore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// PutSources inserts or replaces source records.
func (s *SQLiteDocstore) PutSources(ctx context.Context, sources []*models.SourceFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, src := range sources {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO sources (file_name, digest, chunk_count, ingested_at) VALUES (?, ?, ?, ?)`,
			src.FileName, src.Digest, src.ChunkCount, src.IngestedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert source %s: %w", src.FileName, err)
		}
	}
	return tx.Commit()
}

// Sources returns all source records, most recent first.
func (s *SQLiteDocstore) Sources(ctx context.Context) ([]*models.SourceFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_name, digest, chunk_count, ingested_at FROM sources ORDER BY ingested_at DESC, file_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.SourceFile
	for rows.Next() {
		var src models.SourceFile
		if err := rows.Scan(&src.FileName, &src.Digest, &src.ChunkCount, &src.IngestedAt); err != nil {
			return nil, err
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteDocstore) Close() error {
	return s.db.Close()
}
