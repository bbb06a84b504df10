// Package retrieval answers similarity queries and questions against named
// indices. Loaded indices are cached until the lifecycle reports a change
// or the index's manifest on disk is replaced.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/answer"
	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/keyword"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/vectorstore"
	"github.com/hyperjump/shiryo/pkg/utils"
)

// ErrModelMismatch is returned when an index was built with a different
// embedding model than the one configured for queries.
var ErrModelMismatch = errors.New("embedding model mismatch")

// ValidationError reports a malformed query or question.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Opener loads indices and reports when one changes. *lifecycle.Manager implements it.
type Opener interface {
	Open(ctx context.Context, name string) (*vectorstore.Store, error)
	// Stamp identifies the committed state of an index on disk.
	Stamp(name string) (os.FileInfo, error)
	OnChange(fn func(name string))
}

// Service runs queries and answers questions.
type Service struct {
	opener    Opener
	embedder  embedding.Embedder
	generator answer.Generator
	cfg       config.QueryConfig
	logger    *zap.Logger

	mu     sync.Mutex
	stores map[string]*cachedStore
	gens   map[string]uint64
}

type cachedStore struct {
	store *vectorstore.Store
	stamp os.FileInfo
	refs  int
	stale bool
}

// current reports whether stamp still describes the state c was loaded from.
func (c *cachedStore) current(stamp os.FileInfo) bool {
	return c.stamp != nil && stamp != nil &&
		os.SameFile(c.stamp, stamp) && c.stamp.ModTime().Equal(stamp.ModTime())
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = utils.OrNop(l)
	}
}

// WithGenerator sets the answer generator used by Ask.
func WithGenerator(g answer.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// NewService creates a service and subscribes it to index changes.
func NewService(opener Opener, embedder embedding.Embedder, cfg config.QueryConfig, opts ...Option) *Service {
	s := &Service{
		opener:   opener,
		embedder: embedder,
		cfg:      cfg,
		logger:   zap.NewNop(),
		stores:   make(map[string]*cachedStore),
		gens:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.generator == nil {
		s.generator = answer.NewExtractiveGenerator(0)
	}
	opener.OnChange(s.Invalidate)
	return s
}

// Query returns the chunks of q.Index most similar to q.Text.
func (s *Service) Query(ctx context.Context, q models.Query) (*models.QueryResponse, error) {
	start := time.Now()
	if err := q.Validate(s.cfg.DefaultK, s.cfg.MaxK); err != nil {
		return nil, &ValidationError{Err: err}
	}
	hits, err := s.retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	return &models.QueryResponse{
		Index:     q.Index,
		Query:     q.Text,
		Hits:      hits,
		Reranked:  q.Rerank,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// Ask retrieves context for req.Question and hands it to the generator.
func (s *Service) Ask(ctx context.Context, req models.AskRequest) (*models.AnswerResponse, error) {
	start := time.Now()
	q := models.Query{Index: req.Index, Text: req.Question, K: req.K}
	if err := q.Validate(s.cfg.DefaultK, s.cfg.MaxK); err != nil {
		return nil, &ValidationError{Err: err}
	}
	hits, err := s.retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	text, err := s.generator.Answer(ctx, req.Question, req.History, hits)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	s.logger.Debug("answered question",
		zap.String("index", req.Index),
		zap.String("generator", s.generator.Name()),
		zap.Int("chunks", len(hits)),
	)
	return &models.AnswerResponse{
		Index:     req.Index,
		Question:  req.Question,
		Answer:    text,
		Chunks:    hits,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

func (s *Service) retrieve(ctx context.Context, q models.Query) ([]*models.ChunkHit, error) {
	store, release, err := s.acquire(ctx, q.Index)
	if err != nil {
		return nil, err
	}
	defer release()

	if store.EmbeddingModel() != s.embedder.Model() {
		return nil, fmt.Errorf("%w: index %q uses %s, queries use %s",
			ErrModelMismatch, q.Index, store.EmbeddingModel(), s.embedder.Model())
	}
	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fetch := q.K
	if q.Rerank && s.cfg.CandidateMultiplier > 1 {
		fetch = q.K * s.cfg.CandidateMultiplier
	}
	found, err := store.SimilaritySearch(ctx, vec, fetch)
	if err != nil {
		return nil, fmt.Errorf("search index %q: %w", q.Index, err)
	}

	if !q.Rerank {
		hits := make([]*models.ChunkHit, 0, len(found))
		for i, h := range found {
			hit := toHit(h, i+1)
			hit.Score = h.Score
			hits = append(hits, hit)
		}
		return hits, nil
	}
	return s.rerank(ctx, q, found)
}

func (s *Service) rerank(ctx context.Context, q models.Query, found []vectorstore.Hit) ([]*models.ChunkHit, error) {
	candidates := make([]*models.Chunk, len(found))
	order := make([]string, len(found))
	semantic := make(map[string]float64, len(found))
	byID := make(map[string]vectorstore.Hit, len(found))
	for i, h := range found {
		candidates[i] = h.Chunk
		order[i] = h.Chunk.ID
		semantic[h.Chunk.ID] = h.Score
		byID[h.Chunk.ID] = h
	}
	raw, err := keyword.Score(ctx, q.Text, candidates, keyword.Options{})
	if err != nil {
		return nil, err
	}
	fused := Fuse(order, NormalizeKeywordScores(raw), semantic, s.cfg.KeywordWeight, s.cfg.SemanticWeight)
	if len(fused) > q.K {
		fused = fused[:q.K]
	}
	hits := make([]*models.ChunkHit, 0, len(fused))
	for i, f := range fused {
		hit := toHit(byID[f.ChunkID], i+1)
		hit.Score = f.Score
		hit.KeywordScore = f.KeywordScore
		hits = append(hits, hit)
	}
	return hits, nil
}

func toHit(h vectorstore.Hit, rank int) *models.ChunkHit {
	return &models.ChunkHit{
		ChunkID:       h.Chunk.ID,
		Source:        h.Chunk.Source,
		Content:       h.Chunk.Content,
		SemanticScore: h.Score,
		Rank:          rank,
	}
}

// acquire returns the cached store for name, loading it on a miss. A cached
// store is reused only while the manifest on disk is the one it was loaded
// with, so ingests and deletes by other processes are picked up. The
// returned release func must be called when the caller is done with it.
func (s *Service) acquire(ctx context.Context, name string) (*vectorstore.Store, func(), error) {
	// stat before loading: a commit in between leaves an older stamp and
	// only costs one extra reload
	stamp, statErr := s.opener.Stamp(name)

	s.mu.Lock()
	if c, ok := s.stores[name]; ok {
		if statErr == nil && c.current(stamp) {
			c.refs++
			s.mu.Unlock()
			return c.store, s.releaser(c), nil
		}
		s.invalidateLocked(name)
		s.logger.Debug("index changed on disk", zap.String("index", name))
	}
	gen := s.gens[name]
	s.mu.Unlock()

	store, err := s.opener.Open(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := &cachedStore{store: store, stamp: stamp, refs: 1}
	if s.gens[name] != gen || statErr != nil {
		// changed while loading; serve this load once without caching it
		c.stale = true
	} else if existing, ok := s.stores[name]; ok {
		existing.refs++
		_ = store.Close()
		return existing.store, s.releaser(existing), nil
	} else {
		s.stores[name] = c
		s.logger.Debug("cached index", zap.String("index", name), zap.Int("chunks", store.Size()))
	}
	return store, s.releaser(c), nil
}

func (s *Service) releaser(c *cachedStore) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			c.refs--
			if c.stale && c.refs == 0 {
				_ = c.store.Close()
			}
		})
	}
}

// Invalidate drops the cached store of name. In-flight queries keep using it.
func (s *Service) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(name)
}

func (s *Service) invalidateLocked(name string) {
	s.gens[name]++
	c, ok := s.stores[name]
	if !ok {
		return
	}
	delete(s.stores, name)
	c.stale = true
	if c.refs == 0 {
		_ = c.store.Close()
	}
	s.logger.Debug("invalidated cached index", zap.String("index", name))
}

// Close releases every cached store.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.stores {
		delete(s.stores, name)
		c.stale = true
		if c.refs == 0 {
			_ = c.store.Close()
		}
	}
	return nil
}
