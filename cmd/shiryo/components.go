package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/answer"
	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/lifecycle"
	"github.com/hyperjump/shiryo/internal/loader"
	"github.com/hyperjump/shiryo/internal/manifest"
	"github.com/hyperjump/shiryo/internal/retrieval"
	"github.com/hyperjump/shiryo/internal/vector"
	"github.com/hyperjump/shiryo/pkg/utils"
)

// Components holds the wired application services.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Embedder  embedding.Embedder
	Manager   *lifecycle.Manager
	Retrieval *retrieval.Service
	Loader    *loader.Loader
}

type componentMode int

const (
	// modeInspect never embeds, so no embedding provider is contacted.
	modeInspect componentMode = iota
	// modeFull wires the configured embedding and answer providers.
	modeFull
)

// initializeComponents wires the services for cfg.
func initializeComponents(cfg *config.Config, logger *zap.Logger, mode componentMode) (*Components, error) {
	logger = utils.OrNop(logger)

	var (
		emb embedding.Embedder
		err error
	)
	if mode == modeFull {
		emb, err = embedding.New(cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		logger.Info("embedder initialized",
			zap.String("model", emb.Model()),
			zap.Int("dimensions", emb.Dimensions()))
	} else {
		emb = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}

	indexType := cfg.Vector.IndexType
	if indexType == string(vector.IndexTypeFAISS) && !vector.IsFAISSAvailable() {
		logger.Warn("FAISS not available in this build, falling back to flat index")
		indexType = string(vector.IndexTypeFlat)
	}

	l := layout.New(cfg.Storage.IndexRoot)
	mgr, err := lifecycle.NewManager(l, manifest.NewFileStore(l), emb, lifecycle.Config{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		PoolFiles:    cfg.Chunking.PoolFiles,
		BatchSize:    cfg.Embedding.BatchSize,
		IndexType:    indexType,
		LockTimeout:  cfg.Lock.Timeout,
	}, lifecycle.WithLogger(logger))
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize index manager: %w", err)
	}

	svcOpts := []retrieval.Option{retrieval.WithLogger(logger)}
	if mode == modeFull {
		gen, err := answer.New(cfg.Answer)
		if err != nil {
			logger.Warn("answer provider unavailable, using extractive answers", zap.Error(err))
			gen = answer.NewExtractiveGenerator(cfg.Answer.MaxContext)
		}
		svcOpts = append(svcOpts, retrieval.WithGenerator(gen))
	}
	svc := retrieval.NewService(mgr, emb, cfg.Query, svcOpts...)

	ld := loader.New(
		loader.WithLogger(logger),
		loader.WithRecursive(cfg.Watch.RecursiveOrDefault()),
	)

	return &Components{
		Config:    cfg,
		Logger:    logger,
		Embedder:  emb,
		Manager:   mgr,
		Retrieval: svc,
		Loader:    ld,
	}, nil
}

// Close releases cached indices and the embedder.
func (c *Components) Close() {
	_ = c.Retrieval.Close()
	_ = c.Embedder.Close()
}
