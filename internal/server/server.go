// Package server provides the HTTP API for shiryo.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/lifecycle"
	"github.com/hyperjump/shiryo/internal/loader"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/pkg/utils"
)

const queryTimeout = 60 * time.Second

// IndexManager is the lifecycle surface the API exposes. *lifecycle.Manager implements it.
type IndexManager interface {
	Ingest(ctx context.Context, name string, files []models.FileInput, opts ...lifecycle.IngestOption) (*models.IngestResult, error)
	DeleteIndex(ctx context.Context, name string) error
	List() ([]*models.Manifest, error)
	IsConsistent(ctx context.Context, name string) (bool, error)
	Describe(ctx context.Context, name string) (*models.IndexInfo, error)
}

// Querier answers queries and questions. *retrieval.Service implements it.
type Querier interface {
	Query(ctx context.Context, q models.Query) (*models.QueryResponse, error)
	Ask(ctx context.Context, req models.AskRequest) (*models.AnswerResponse, error)
}

// Server is the HTTP server for the shiryo API.
type Server struct {
	manager IndexManager
	querier Querier
	loader  *loader.Loader
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(manager IndexManager, querier Querier, ld *loader.Loader, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		manager: manager,
		querier: querier,
		loader:  ld,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
}

// Router builds the chi router with every API route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1/indices", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(queryTimeout))
			r.Get("/", s.handleListIndices)
			r.Get("/{name}", s.handleDescribeIndex)
			r.Get("/{name}/consistency", s.handleConsistency)
			r.Post("/{name}/query", s.handleQuery)
			r.Post("/{name}/ask", s.handleAsk)
		})
		// ingestion and deletion wait on the index lock and embed whole batches
		r.Delete("/{name}", s.handleDeleteIndex)
		r.Post("/{name}/files", s.handleUpload)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
