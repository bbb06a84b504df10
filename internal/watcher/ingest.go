package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/lifecycle"
	"github.com/hyperjump/shiryo/internal/loader"
	"github.com/hyperjump/shiryo/internal/models"
)

// Ingester adds files to a named index. *lifecycle.Manager implements it.
type Ingester interface {
	Ingest(ctx context.Context, name string, files []models.FileInput, opts ...lifecycle.IngestOption) (*models.IngestResult, error)
}

// IngestInto returns a BatchFunc that extracts each batch and ingests it into
// the index named target. Files that fail extraction are logged and skipped.
func IngestInto(ing Ingester, ld *loader.Loader, target string, logger *zap.Logger) BatchFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, paths []string) {
		files := make([]models.FileInput, 0, len(paths))
		for _, p := range paths {
			in, err := ld.LoadFile(p)
			if err != nil {
				logger.Warn("skipping watched file", zap.String("path", p), zap.Error(err))
				continue
			}
			files = append(files, in)
		}
		if len(files) == 0 {
			return
		}
		res, err := ing.Ingest(ctx, target, files)
		if err != nil {
			logger.Error("watched ingest failed", zap.String("index", target), zap.Int("files", len(files)), zap.Error(err))
			return
		}
		logger.Info("watched ingest",
			zap.String("index", target),
			zap.String("status", string(res.Status)),
			zap.Strings("files_added", res.FilesAdded),
			zap.Int("chunks_added", res.ChunksAdded),
		)
		for _, w := range res.Warnings {
			logger.Warn("watched ingest warning", zap.String("index", target), zap.String("warning", w))
		}
	}
}
