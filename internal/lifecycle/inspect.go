package lifecycle

import (
	"context"
	"path/filepath"

	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/manifest"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/storage"
)

// List returns the manifests of all complete indices.
func (m *Manager) List() ([]*models.Manifest, error) {
	return m.manifests.ListAll()
}

// IsConsistent reports whether the named index has both artifacts and a
// readable manifest that names it. An index with neither artifact is
// *manifest.IndexNotFoundError.
func (m *Manager) IsConsistent(ctx context.Context, name string) (bool, error) {
	if err := layout.ValidateName(name); err != nil {
		return false, err
	}
	release, err := m.locks.lock(ctx, name, false)
	if err != nil {
		return false, err
	}
	defer release()

	hasManifest, hasVectors := m.artifacts(name)
	if !hasManifest && !hasVectors {
		return false, &manifest.IndexNotFoundError{Name: name}
	}
	if !hasManifest || !hasVectors {
		return false, nil
	}
	mf, err := m.manifests.Read(name)
	if err != nil {
		return false, nil
	}
	return mf.Name == name, nil
}

// Describe reports the manifest, artifact state, chunk count and sources of the named index.
func (m *Manager) Describe(ctx context.Context, name string) (*models.IndexInfo, error) {
	if err := layout.ValidateName(name); err != nil {
		return nil, err
	}
	release, err := m.locks.lock(ctx, name, false)
	if err != nil {
		return nil, err
	}
	defer release()

	info := &models.IndexInfo{}
	info.HasManifest, info.HasVectors = m.artifacts(name)
	if !info.HasManifest && !info.HasVectors {
		return nil, &manifest.IndexNotFoundError{Name: name}
	}
	manifestOK := false
	if info.HasManifest {
		if mf, err := m.manifests.Read(name); err == nil {
			info.Manifest = mf
			manifestOK = mf.Name == name
		}
	}
	if info.HasVectors {
		ds, err := storage.OpenSQLiteDocstore(filepath.Join(m.layout.IndexDir(name), layout.DocstoreFile))
		if err != nil {
			return nil, err
		}
		defer ds.Close()
		if meta, err := ds.GetMeta(ctx); err == nil {
			info.IndexType = meta.IndexType
		}
		if info.ChunkCount, err = ds.CountChunks(ctx); err != nil {
			return nil, err
		}
		if info.Sources, err = ds.Sources(ctx); err != nil {
			return nil, err
		}
	}
	info.Consistent = info.HasManifest && info.HasVectors && manifestOK
	if info.DiskUsageBytes, err = storage.IndexDiskUsage(m.layout.IndexDir(name)); err != nil {
		return nil, err
	}
	return info, nil
}
