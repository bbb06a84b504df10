// Package lifecycle owns every mutation of the storage root: it creates,
// grows and deletes named indices and keeps each index's manifest and vector
// index in step.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/chunker"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/manifest"
	"github.com/hyperjump/shiryo/internal/vectorstore"
	"github.com/hyperjump/shiryo/pkg/utils"
)

// Config holds the ingestion settings of a Manager.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	// PoolFiles chunks the concatenated text of a batch instead of each file.
	// Files are joined with a newline, which normalization turns into a
	// space, so the last word of one file never fuses with the next file's first.
	PoolFiles   bool
	BatchSize   int
	IndexType   string
	LockTimeout time.Duration
}

// Manager is the single writer of indices under one storage root.
type Manager struct {
	layout    *layout.Layout
	manifests manifest.Store
	embedder  embedding.Embedder
	chunker   *chunker.Chunker
	cfg       Config
	locks     *nameLocks
	logger    *zap.Logger
	rename    func(oldpath, newpath string) error
	remove    func(path string) error

	listenersMu sync.RWMutex
	listeners   []func(name string)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = utils.OrNop(l)
	}
}

// NewManager creates a manager over root. The chunking settings are validated here.
func NewManager(l *layout.Layout, manifests manifest.Store, embedder embedding.Embedder, cfg Config, opts ...Option) (*Manager, error) {
	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.IndexType == "" {
		cfg.IndexType = "flat"
	}
	if err := os.MkdirAll(l.Root, 0755); err != nil {
		return nil, fmt.Errorf("create index root: %w", err)
	}
	m := &Manager{
		layout:    l,
		manifests: manifests,
		embedder:  embedder,
		chunker:   ch,
		cfg:       cfg,
		locks:     newNameLocks(l.LockPath, cfg.LockTimeout),
		logger:    zap.NewNop(),
		rename:    os.Rename,
		remove:    os.Remove,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// OnChange registers fn to be called with the index name after every
// successful ingest or delete.
func (m *Manager) OnChange(fn func(name string)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) notify(name string) {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	for _, fn := range m.listeners {
		fn(name)
	}
}

// artifacts reports which of the two index artifacts exist.
func (m *Manager) artifacts(name string) (hasManifest, hasVectors bool) {
	return m.layout.HasManifest(name), m.layout.HasVectors(name)
}

// Stamp returns the file info of the named index's committed manifest.
// Every commit publishes a new directory, so a changed file (os.SameFile)
// or modification time means another ingest or delete happened, in this
// process or another. It takes no lock.
func (m *Manager) Stamp(name string) (os.FileInfo, error) {
	if err := layout.ValidateName(name); err != nil {
		return nil, err
	}
	return os.Stat(m.layout.ManifestPath(name))
}

// Open loads the named index for querying under a shared lock.
func (m *Manager) Open(ctx context.Context, name string) (*vectorstore.Store, error) {
	if err := layout.ValidateName(name); err != nil {
		return nil, err
	}
	release, err := m.locks.lock(ctx, name, false)
	if err != nil {
		return nil, err
	}
	defer release()

	hasManifest, hasVectors := m.artifacts(name)
	switch {
	case !hasManifest && !hasVectors:
		return nil, &manifest.IndexNotFoundError{Name: name}
	case hasManifest != hasVectors:
		return nil, &InconsistentStateError{Name: name, HasManifest: hasManifest, HasVectors: hasVectors}
	}
	return vectorstore.Load(ctx, name, m.layout.IndexDir(name))
}
