// Package layout maps index names onto the storage root: one directory per
// index plus hidden staging, trash and lock directories.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/shiryo/internal/fileid"
)

const (
	// ManifestFile is the manifest file name inside an index directory.
	ManifestFile = "desc.json"
	// DocstoreFile holds chunk texts and source records.
	DocstoreFile = "docstore.db"

	stagingDir = ".staging"
	trashDir   = ".trash"
	locksDir   = ".locks"

	// SwapSuffix marks a live directory moved aside during a commit.
	SwapSuffix = ".swap"
	// DeleteSuffix marks a directory moved aside for deletion.
	DeleteSuffix = ".del"
)

// VectorFiles lists the vector file name per index type.
var VectorFiles = map[string]string{
	"flat":  "index.vec",
	"faiss": "index.faiss",
}

// ErrInvalidName is returned for index names that cannot be used as a directory name.
var ErrInvalidName = errors.New("invalid index name")

// Layout resolves paths under Root.
type Layout struct {
	Root string
}

// New returns a layout rooted at root.
func New(root string) *Layout {
	return &Layout{Root: root}
}

// ValidateName rejects names that are empty, hidden or contain path separators.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.ContainsRune(name, '?'):
		// The SQLite driver treats '?' in a path as the start of its options.
		return fmt.Errorf("%w: %q contains '?'", ErrInvalidName, name)
	}
	return nil
}

// IndexDir returns the directory of the named index.
func (l *Layout) IndexDir(name string) string {
	return filepath.Join(l.Root, name)
}

// ManifestPath returns the manifest path of the named index.
func (l *Layout) ManifestPath(name string) string {
	return filepath.Join(l.IndexDir(name), ManifestFile)
}

// StagingDir returns a fresh, unique staging directory path (not created).
func (l *Layout) StagingDir() string {
	return filepath.Join(l.Root, stagingDir, uuid.NewString())
}

// StagingRoot returns the parent of all staging directories.
func (l *Layout) StagingRoot() string {
	return filepath.Join(l.Root, stagingDir)
}

// TrashDir returns a fresh trash path with the given suffix (not created).
func (l *Layout) TrashDir(suffix string) string {
	return filepath.Join(l.TrashRoot(), uuid.NewString()+suffix)
}

// TrashRoot returns the parent of all trash entries.
func (l *Layout) TrashRoot() string {
	return filepath.Join(l.Root, trashDir)
}

// LockPath returns the lock file for the named index.
func (l *Layout) LockPath(name string) string {
	return filepath.Join(l.Root, locksDir, fileid.NameKey(name)+".lock")
}

// RootLockPath returns the lock file guarding the staging and trash
// directories. Index lock files are hex digests, so it cannot collide.
func (l *Layout) RootLockPath() string {
	return filepath.Join(l.Root, locksDir, "root.lock")
}

// HasManifest reports whether the named index has a manifest file.
func (l *Layout) HasManifest(name string) bool {
	return fileExists(l.ManifestPath(name))
}

// HasVectors reports whether the directory holds a docstore and a vector file of any type.
func HasVectors(dir string) bool {
	if !fileExists(filepath.Join(dir, DocstoreFile)) {
		return false
	}
	for _, f := range VectorFiles {
		if fileExists(filepath.Join(dir, f)) {
			return true
		}
	}
	return false
}

// HasVectors reports whether the named index has a persisted vector index.
func (l *Layout) HasVectors(name string) bool {
	return HasVectors(l.IndexDir(name))
}

// VectorArtifacts returns the vector-index files present for the named index.
func (l *Layout) VectorArtifacts(name string) []string {
	dir := l.IndexDir(name)
	var out []string
	for _, f := range []string{DocstoreFile, VectorFiles["flat"], VectorFiles["faiss"], VectorFiles["faiss"] + ".ids"} {
		p := filepath.Join(dir, f)
		if fileExists(p) {
			out = append(out, p)
		}
	}
	return out
}

// IsHidden reports whether a root entry is internal bookkeeping rather than an index.
func IsHidden(entry string) bool {
	return strings.HasPrefix(entry, ".")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
