package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/lifecycle"
	"github.com/hyperjump/shiryo/internal/models"
)

const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListIndices(w http.ResponseWriter, r *http.Request) {
	list, err := s.manager.List()
	if err != nil {
		s.fail(w, r, "list indices failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"indices": list})
}

func (s *Server) handleDescribeIndex(w http.ResponseWriter, r *http.Request) {
	name, ok := s.indexName(w, r)
	if !ok {
		return
	}
	info, err := s.manager.Describe(r.Context(), name)
	if err != nil {
		s.fail(w, r, "describe index failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	name, ok := s.indexName(w, r)
	if !ok {
		return
	}
	consistent, err := s.manager.IsConsistent(r.Context(), name)
	if err != nil {
		s.fail(w, r, "consistency check failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"index": name, "consistent": consistent})
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name, ok := s.indexName(w, r)
	if !ok {
		return
	}
	s.logger.Debug("delete index request", zap.String("index", name))
	if err := s.manager.DeleteIndex(r.Context(), name); err != nil {
		var partial *lifecycle.PartialDeleteError
		if errors.As(err, &partial) {
			s.logger.Error("partial delete", zap.String("index", name), zap.Strings("remaining", partial.Remaining))
			s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":     err.Error(),
				"remaining": partial.Remaining,
			})
			return
		}
		s.fail(w, r, "delete index failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"index": name, "status": "deleted"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, ok := s.indexName(w, r)
	if !ok {
		return
	}
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	files := make([]models.FileInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		in, err := s.loader.LoadBytes(fh.Filename, content)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		files = append(files, in)
	}

	var opts []lifecycle.IngestOption
	if about := r.FormValue("about"); about != "" {
		opts = append(opts, lifecycle.WithAbout(about))
	}
	s.logger.Debug("ingest request", zap.String("index", name), zap.Int("files", len(files)))
	res, err := s.manager.Ingest(r.Context(), name, files, opts...)
	if err != nil {
		s.fail(w, r, "ingest failed", err)
		return
	}
	status := http.StatusOK
	if res.Status == models.StatusCreated {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name, ok := s.indexName(w, r)
	if !ok {
		return
	}
	var q models.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q.Index = name
	s.logger.Debug("query request", zap.String("index", name), zap.Int("k", q.K), zap.Bool("rerank", q.Rerank))
	resp, err := s.querier.Query(r.Context(), q)
	if err != nil {
		s.fail(w, r, "query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	name, ok := s.indexName(w, r)
	if !ok {
		return
	}
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Index = name
	s.logger.Debug("ask request", zap.String("index", name), zap.Int("history", len(req.History)))
	resp, err := s.querier.Ask(r.Context(), req)
	if err != nil {
		s.fail(w, r, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// indexName returns the {name} URL parameter, unescaped when the router saw the raw path.
func (s *Server) indexName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid index name")
			return "", false
		}
		name = unescaped
	}
	return name, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
