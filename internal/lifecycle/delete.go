package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/manifest"
)

// DeleteIndex removes the named index: vectors, docstore and manifest. The
// directory is first moved into the trash so the index disappears at once;
// if that fails the artifacts are removed one by one and anything left over
// is reported in a *PartialDeleteError.
func (m *Manager) DeleteIndex(ctx context.Context, name string) error {
	if err := layout.ValidateName(name); err != nil {
		return err
	}
	release, err := m.locks.lock(ctx, name, true)
	if err != nil {
		return err
	}
	defer release()

	hasManifest, hasVectors := m.artifacts(name)
	if !hasManifest && !hasVectors {
		return &manifest.IndexNotFoundError{Name: name}
	}
	defer m.notify(name)

	live := m.layout.IndexDir(name)
	err = m.moveToTrash(ctx, live)
	if err == nil {
		m.logger.Info("deleted index", zap.String("index", name))
		return nil
	}
	m.logger.Warn("failed to move index to trash, removing files in place",
		zap.String("index", name), zap.Error(err))

	var remaining []string
	for _, p := range append(m.layout.VectorArtifacts(name), m.layout.ManifestPath(name)) {
		if err := m.remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			remaining = append(remaining, p)
		}
	}
	if err := os.Remove(live); err != nil && !errors.Is(err, fs.ErrNotExist) {
		remaining = appendLeftovers(remaining, live)
	}
	if len(remaining) > 0 {
		return &PartialDeleteError{Name: name, Remaining: remaining}
	}
	m.logger.Info("deleted index", zap.String("index", name))
	return nil
}

func (m *Manager) moveToTrash(ctx context.Context, dir string) error {
	releaseRoot, err := m.lockRoot(ctx, false)
	if err != nil {
		return err
	}
	defer releaseRoot()

	if err := os.MkdirAll(m.layout.TrashRoot(), 0755); err != nil {
		return err
	}
	trash := m.layout.TrashDir(layout.DeleteSuffix)
	if err := m.rename(dir, trash); err != nil {
		return err
	}
	if err := os.RemoveAll(trash); err != nil {
		m.logger.Warn("failed to purge deleted index", zap.String("path", trash), zap.Error(err))
	}
	return nil
}

// appendLeftovers adds the entries still in dir that remaining does not
// already name, or dir itself when it cannot be read.
func appendLeftovers(remaining []string, dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return append(remaining, dir)
	}
	known := make(map[string]bool, len(remaining))
	for _, p := range remaining {
		known[p] = true
	}
	for _, e := range entries {
		if p := filepath.Join(dir, e.Name()); !known[p] {
			remaining = append(remaining, p)
		}
	}
	if len(entries) == 0 {
		remaining = append(remaining, dir)
	}
	return remaining
}
