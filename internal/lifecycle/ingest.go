package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/fileid"
	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/manifest"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/vectorstore"
)

// IngestOption configures one Ingest call.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	about string
}

// WithAbout sets the description stored in a newly created manifest.
// It is ignored when the index already exists.
func WithAbout(about string) IngestOption {
	return func(o *ingestOptions) { o.about = about }
}

// Ingest adds files to the named index, creating it if absent. Files whose
// names the index already lists, and repeats within the batch, are skipped.
// The vectors and the manifest are committed together or not at all.
func (m *Manager) Ingest(ctx context.Context, name string, files []models.FileInput, opts ...IngestOption) (*models.IngestResult, error) {
	if err := layout.ValidateName(name); err != nil {
		return nil, err
	}
	var o ingestOptions
	for _, opt := range opts {
		opt(&o)
	}

	release, err := m.locks.lock(ctx, name, true)
	if err != nil {
		return nil, err
	}
	defer release()

	hasManifest, hasVectors := m.artifacts(name)
	if hasManifest != hasVectors {
		return nil, &InconsistentStateError{Name: name, HasManifest: hasManifest, HasVectors: hasVectors}
	}
	existing := &models.Manifest{Name: name, About: o.about, FileNames: []string{}}
	if hasManifest {
		if existing, err = m.manifests.Read(name); err != nil {
			return nil, err
		}
	}

	result := &models.IngestResult{IndexName: name, FilesAdded: []string{}}
	fresh := make([]models.FileInput, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if existing.Has(f.Name) || seen[f.Name] {
			result.FilesSkipped = append(result.FilesSkipped, f.Name)
			continue
		}
		seen[f.Name] = true
		fresh = append(fresh, f)
	}
	if len(fresh) == 0 {
		result.Status = models.StatusAlreadyIngested
		m.logger.Debug("nothing new to ingest", zap.String("index", name), zap.Int("files", len(files)))
		return result, nil
	}

	var base *vectorstore.Store
	if hasVectors {
		if base, err = vectorstore.Load(ctx, name, m.layout.IndexDir(name)); err != nil {
			return nil, err
		}
		defer base.Close()
	}

	chunks, sources, skipped := m.chunkFiles(fresh)
	for _, s := range skipped {
		result.FilesSkipped = append(result.FilesSkipped, s)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no text to index", s))
	}
	if len(chunks) == 0 {
		return nil, vectorstore.ErrEmptyInput
	}
	result.Warnings = append(result.Warnings, duplicateContentWarnings(base, sources)...)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	start := time.Now()
	vecs, err := embedding.EmbedAll(ctx, m.embedder, texts, m.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Vector = vecs[i]
	}
	m.logger.Debug("embedded chunks",
		zap.String("index", name),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))

	incoming, err := vectorstore.Build(ctx, vectorstore.Options{
		Name:           name,
		IndexType:      m.cfg.IndexType,
		EmbeddingModel: m.embedder.Model(),
	}, chunks, sources)
	if err != nil {
		return nil, err
	}
	defer incoming.Close()

	added := make([]string, 0, len(sources))
	for _, s := range sources {
		added = append(added, s.FileName)
	}

	store, next := incoming, existing.WithPrepended(added)
	next.Name = name
	result.Status = models.StatusCreated
	if base != nil {
		if store, err = vectorstore.Merge(ctx, incoming, base); err != nil {
			return nil, err
		}
		defer store.Close()
		result.Status = models.StatusMerged
	}

	if err := m.commit(ctx, name, store, next); err != nil {
		return nil, err
	}

	result.FilesAdded = added
	result.ChunksAdded = len(chunks)
	m.logger.Info("ingested files",
		zap.String("index", name),
		zap.String("status", string(result.Status)),
		zap.Strings("files", added),
		zap.Int("chunks", len(chunks)))
	m.notify(name)
	return result, nil
}

// chunkFiles splits fresh files into chunks. Files that produce no chunk are
// returned in skipped and get no source record.
func (m *Manager) chunkFiles(files []models.FileInput) ([]*models.Chunk, []*models.SourceFile, []string) {
	var (
		chunks  []*models.Chunk
		sources []*models.SourceFile
		skipped []string
	)
	now := time.Now().UTC()
	newChunk := func(source, content string) *models.Chunk {
		return &models.Chunk{ID: uuid.NewString(), Source: source, Content: content, Position: len(chunks)}
	}

	if m.cfg.PoolFiles {
		texts := make([]string, 0, len(files))
		for _, f := range files {
			if strings.TrimSpace(f.Text) == "" {
				skipped = append(skipped, f.Name)
				continue
			}
			texts = append(texts, f.Text)
			sources = append(sources, &models.SourceFile{FileName: f.Name, Digest: fileid.Digest(f.Text), IngestedAt: now})
		}
		for _, piece := range m.chunker.Chunk(strings.Join(texts, "\n")) {
			chunks = append(chunks, newChunk("", piece))
		}
		if len(chunks) == 0 {
			skipped = append(skipped, namesOf(sources)...)
			sources = nil
		}
		return chunks, sources, skipped
	}

	for _, f := range files {
		pieces := m.chunker.Chunk(f.Text)
		if len(pieces) == 0 {
			skipped = append(skipped, f.Name)
			continue
		}
		for _, piece := range pieces {
			chunks = append(chunks, newChunk(f.Name, piece))
		}
		sources = append(sources, &models.SourceFile{
			FileName:   f.Name,
			Digest:     fileid.Digest(f.Text),
			ChunkCount: len(pieces),
			IngestedAt: now,
		})
	}
	return chunks, sources, skipped
}

// duplicateContentWarnings flags new files whose content is already indexed
// under a different name, in base or earlier in the same batch.
func duplicateContentWarnings(base *vectorstore.Store, sources []*models.SourceFile) []string {
	known := make(map[string]string)
	if base != nil {
		for _, s := range base.Sources() {
			known[s.Digest] = s.FileName
		}
	}
	var warnings []string
	for _, s := range sources {
		if other, ok := known[s.Digest]; ok {
			warnings = append(warnings, fmt.Sprintf("%s has the same content as %s", s.FileName, other))
			continue
		}
		known[s.Digest] = s.FileName
	}
	return warnings
}

func namesOf(sources []*models.SourceFile) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.FileName
	}
	return out
}

// commit writes store and manifest into a staging directory and swaps it with
// the live index directory. On failure the live directory is left as it was.
func (m *Manager) commit(ctx context.Context, name string, store *vectorstore.Store, next *models.Manifest) error {
	releaseRoot, err := m.lockRoot(ctx, false)
	if err != nil {
		return err
	}
	defer releaseRoot()

	staging := m.layout.StagingDir()
	cleanup := func() {
		if err := os.RemoveAll(staging); err != nil {
			m.logger.Warn("failed to remove staging dir", zap.String("path", staging), zap.Error(err))
		}
	}
	if err := store.Save(ctx, staging); err != nil {
		cleanup()
		return fmt.Errorf("stage index %q: %w", name, err)
	}
	if err := manifest.WriteFile(filepath.Join(staging, layout.ManifestFile), next); err != nil {
		cleanup()
		return fmt.Errorf("stage manifest %q: %w", name, err)
	}

	live := m.layout.IndexDir(name)
	if _, err := os.Stat(live); os.IsNotExist(err) {
		if err := m.rename(staging, live); err != nil {
			cleanup()
			return fmt.Errorf("publish index %q: %w", name, err)
		}
		return nil
	}

	if err := os.MkdirAll(m.layout.TrashRoot(), 0755); err != nil {
		cleanup()
		return fmt.Errorf("create trash dir: %w", err)
	}
	old := m.layout.TrashDir(layout.SwapSuffix)
	if err := m.rename(live, old); err != nil {
		cleanup()
		return fmt.Errorf("move aside index %q: %w", name, err)
	}
	if err := m.rename(staging, live); err != nil {
		if rerr := m.rename(old, live); rerr != nil {
			m.logger.Error("failed to restore index after failed swap",
				zap.String("index", name), zap.String("backup", old), zap.Error(rerr))
		}
		cleanup()
		return fmt.Errorf("publish index %q: %w", name, err)
	}
	if err := os.RemoveAll(old); err != nil {
		m.logger.Warn("failed to remove replaced index", zap.String("path", old), zap.Error(err))
	}
	return nil
}
