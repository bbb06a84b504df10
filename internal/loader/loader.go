// Package loader reads files from disk and turns them into ingestion inputs.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/extract"
	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/pkg/utils"
)

// Loader extracts text from files whose extension is allowed.
type Loader struct {
	extractor  *extract.Extractor
	extensions []string
	recursive  bool
	logger     *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = utils.OrNop(l) }
}

// WithExtensions limits directory walks to the given extensions (".pdf" or "pdf").
// By default every extension the extractor supports is accepted.
func WithExtensions(exts []string) Option {
	return func(ld *Loader) { ld.extensions = exts }
}

// WithRecursive makes directory walks descend into subdirectories.
func WithRecursive(recursive bool) Option {
	return func(ld *Loader) { ld.recursive = recursive }
}

// New creates a loader.
func New(opts ...Option) *Loader {
	ld := &Loader{
		extractor: extract.NewExtractor(),
		recursive: true,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Accepts reports whether a file named name would be loaded from a directory walk.
func (ld *Loader) Accepts(name string) bool {
	if layout.IsHidden(name) || !extract.Supported(name) {
		return false
	}
	if len(ld.extensions) == 0 {
		return true
	}
	return extensionAllowed(filepath.Ext(name), ld.extensions)
}

// LoadFile extracts the file at path. The input is named by the file's base name.
func (ld *Loader) LoadFile(path string) (models.FileInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.FileInput{}, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return models.FileInput{}, fmt.Errorf("not a regular file: %s", path)
	}
	text, err := ld.extractor.Extract(path)
	if err != nil {
		return models.FileInput{}, err
	}
	ld.logger.Debug("loaded file", zap.String("path", path), zap.Int("chars", len(text)))
	return models.FileInput{Name: filepath.Base(path), Text: text}, nil
}

// LoadBytes extracts an uploaded file's content.
func (ld *Loader) LoadBytes(name string, content []byte) (models.FileInput, error) {
	text, err := ld.extractor.ExtractBytes(content, name)
	if err != nil {
		return models.FileInput{}, err
	}
	return models.FileInput{Name: filepath.Base(name), Text: text}, nil
}

// Load extracts every path in order. Files named explicitly must be
// supported; directories contribute only the files Accepts allows.
func (ld *Loader) Load(ctx context.Context, paths []string) ([]models.FileInput, error) {
	var out []models.FileInput
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			in, err := ld.LoadFile(p)
			if err != nil {
				return nil, err
			}
			out = append(out, in)
			continue
		}
		files, err := ld.walk(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

func (ld *Loader) walk(ctx context.Context, dir string) ([]models.FileInput, error) {
	var out []models.FileInput
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (!ld.recursive || layout.IsHidden(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ld.Accepts(d.Name()) {
			return nil
		}
		// resolve symlinks so only regular files are read
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		in, err := ld.LoadFile(path)
		if err != nil {
			return err
		}
		out = append(out, in)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return out, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
