// Package manifest reads and writes the per-index description record
// (desc.json) and enumerates the indices under the storage root.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/models"
)

// ErrIndexNotFound matches every *IndexNotFoundError.
var ErrIndexNotFound = errors.New("index not found")

// IndexNotFoundError reports that no manifest exists for an index.
type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}

// Is lets errors.Is(err, ErrIndexNotFound) match.
func (e *IndexNotFoundError) Is(target error) bool {
	return target == ErrIndexNotFound
}

// Store persists manifests.
type Store interface {
	Read(name string) (*models.Manifest, error)
	Write(name string, m *models.Manifest) error
	ListAll() ([]*models.Manifest, error)
	Delete(name string) error
}

// FileStore keeps manifests as <root>/<name>/desc.json.
type FileStore struct {
	layout *layout.Layout
}

// NewFileStore returns a manifest store over l.
func NewFileStore(l *layout.Layout) *FileStore {
	return &FileStore{layout: l}
}

// Read returns the manifest of name, or *IndexNotFoundError if there is none.
func (s *FileStore) Read(name string) (*models.Manifest, error) {
	return ReadFile(name, s.layout.ManifestPath(name))
}

// ReadFile reads a manifest file. A missing file yields *IndexNotFoundError for name.
func ReadFile(name, path string) (*models.Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &IndexNotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.FileNames == nil {
		m.FileNames = []string{}
	}
	return &m, nil
}

// Write replaces the manifest of name.
func (s *FileStore) Write(name string, m *models.Manifest) error {
	if err := os.MkdirAll(s.layout.IndexDir(name), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return WriteFile(s.layout.ManifestPath(name), m)
}

// WriteFile writes m to path through a temporary file and a rename, so
// readers see either the old or the new manifest.
func WriteFile(path string, m *models.Manifest) error {
	out := *m
	if out.FileNames == nil {
		out.FileNames = []string{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".desc-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// ListAll returns the manifests of every index that has both a manifest and a
// vector index, sorted by name. Unreadable manifests are skipped.
func (s *FileStore) ListAll() ([]*models.Manifest, error) {
	entries, err := os.ReadDir(s.layout.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return []*models.Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	out := make([]*models.Manifest, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || layout.IsHidden(name) {
			continue
		}
		if !s.layout.HasManifest(name) || !s.layout.HasVectors(name) {
			continue
		}
		m, err := s.Read(name)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the manifest file of name. A missing manifest is *IndexNotFoundError.
func (s *FileStore) Delete(name string) error {
	err := os.Remove(s.layout.ManifestPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return &IndexNotFoundError{Name: name}
	}
	return err
}
