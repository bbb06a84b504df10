package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shiryo/internal/answer"
	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/extract"
	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/lifecycle"
	"github.com/hyperjump/shiryo/internal/loader"
	"github.com/hyperjump/shiryo/internal/manifest"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/retrieval"
	"github.com/hyperjump/shiryo/internal/vectorstore"
)

type testEnv struct {
	url    string
	layout *layout.Layout
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	l := layout.New(t.TempDir())
	emb := embedding.NewHashEmbedder(64)
	m, err := lifecycle.NewManager(l, manifest.NewFileStore(l), emb, lifecycle.Config{
		ChunkSize: 200, ChunkOverlap: 20, LockTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	svc := retrieval.NewService(m, emb, config.QueryConfig{
		DefaultK: 5, MaxK: 50, CandidateMultiplier: 4, KeywordWeight: 0.3, SemanticWeight: 0.7,
	})
	srv := NewServer(m, svc, loader.New(), &config.ServerConfig{MaxUploadBytes: maxUpload}, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = svc.Close()
	})
	return &testEnv{url: ts.URL, layout: l}
}

func upload(t *testing.T, url string, about string, files map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if about != "" {
		_ = mw.WriteField("about", about)
	}
	_ = mw.Close()
	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func postJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(v)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		t.Fatalf("status = %d, want %d (body %v)", resp.StatusCode, want, body)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	resp := do(t, http.MethodGet, env.url+"/health")
	expectStatus(t, resp, http.StatusOK)
	var out map[string]string
	decode(t, resp, &out)
	if out["status"] != "ok" {
		t.Errorf("status = %q", out["status"])
	}
}

func TestUploadQueryAskDelete(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	base := env.url + "/api/v1/indices/Default%20Index"

	resp := upload(t, base+"/files", "fruit facts", map[string]string{
		"apples.txt": "apples are red and crunchy",
		"ocean.txt":  "the ocean is deep and blue",
	})
	expectStatus(t, resp, http.StatusCreated)
	var ing models.IngestResult
	decode(t, resp, &ing)
	if ing.Status != models.StatusCreated || len(ing.FilesAdded) != 2 {
		t.Fatalf("ingest result = %+v", ing)
	}

	resp = upload(t, base+"/files", "", map[string]string{"apples.txt": "changed content"})
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &ing)
	if ing.Status != models.StatusAlreadyIngested {
		t.Errorf("re-upload status = %s", ing.Status)
	}

	resp = postJSON(t, base+"/query", map[string]interface{}{"query": "red apples", "k": 1})
	expectStatus(t, resp, http.StatusOK)
	var qr models.QueryResponse
	decode(t, resp, &qr)
	if qr.Index != "Default Index" || len(qr.Hits) != 1 || qr.Hits[0].Source != "apples.txt" {
		t.Errorf("query response = %+v", qr)
	}

	resp = postJSON(t, base+"/ask", map[string]interface{}{"question": "what is deep", "k": 1})
	expectStatus(t, resp, http.StatusOK)
	var ar models.AnswerResponse
	decode(t, resp, &ar)
	if !strings.Contains(ar.Answer, "ocean") {
		t.Errorf("answer = %q", ar.Answer)
	}

	resp = do(t, http.MethodGet, env.url+"/api/v1/indices")
	expectStatus(t, resp, http.StatusOK)
	var list struct {
		Indices []*models.Manifest `json:"indices"`
	}
	decode(t, resp, &list)
	if len(list.Indices) != 1 || list.Indices[0].About != "fruit facts" {
		t.Errorf("list = %+v", list.Indices)
	}

	resp = do(t, http.MethodGet, base)
	expectStatus(t, resp, http.StatusOK)
	var info models.IndexInfo
	decode(t, resp, &info)
	if !info.Consistent || info.ChunkCount != 2 {
		t.Errorf("describe = %+v", info)
	}

	resp = do(t, http.MethodGet, base+"/consistency")
	expectStatus(t, resp, http.StatusOK)
	var cons struct {
		Consistent bool `json:"consistent"`
	}
	decode(t, resp, &cons)
	if !cons.Consistent {
		t.Error("expected consistent index")
	}

	resp = do(t, http.MethodDelete, base)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	for _, r := range []*http.Response{
		do(t, http.MethodGet, base),
		do(t, http.MethodDelete, base),
		postJSON(t, base+"/query", map[string]interface{}{"query": "apples"}),
	} {
		expectStatus(t, r, http.StatusNotFound)
		r.Body.Close()
	}
}

func TestErrorStatuses(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	base := env.url + "/api/v1/indices/docs"

	resp := upload(t, base+"/files", "", map[string]string{"deck.pptx": "x"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = upload(t, base+"/files", "", map[string]string{"blank.txt": "  \n  "})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	resp = upload(t, env.url+"/api/v1/indices/.hidden/files", "", map[string]string{"a.txt": "x"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = upload(t, base+"/files", "", map[string]string{"a.txt": "some text"})
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = postJSON(t, base+"/query", map[string]interface{}{"query": " "})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	bad, _ := http.Post(base+"/query", "application/json", strings.NewReader("{"))
	expectStatus(t, bad, http.StatusBadRequest)
	bad.Body.Close()

	if err := os.Remove(env.layout.ManifestPath("docs")); err != nil {
		t.Fatal(err)
	}
	resp = postJSON(t, base+"/query", map[string]interface{}{"query": "text"})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, 1024)
	resp := upload(t, env.url+"/api/v1/indices/docs/files", "", map[string]string{
		"big.txt": strings.Repeat("x", 4096),
	})
	expectStatus(t, resp, http.StatusRequestEntityTooLarge)
	resp.Body.Close()
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", layout.ErrInvalidName), http.StatusBadRequest},
		{&retrieval.ValidationError{Err: errors.New("bad")}, http.StatusBadRequest},
		{extract.ErrUnsupported, http.StatusBadRequest},
		{&manifest.IndexNotFoundError{Name: "x"}, http.StatusNotFound},
		{&lifecycle.InconsistentStateError{Name: "x", HasVectors: true}, http.StatusConflict},
		{retrieval.ErrModelMismatch, http.StatusConflict},
		{vectorstore.ErrEmptyInput, http.StatusUnprocessableEntity},
		{&embedding.ProviderError{Provider: "openai", Err: errors.New("down")}, http.StatusBadGateway},
		{fmt.Errorf("generate: %w", &answer.ProviderError{Provider: "openai", Err: errors.New("down")}), http.StatusBadGateway},
		{lifecycle.ErrLockTimeout, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&vectorstore.CorruptIndexError{Name: "x", Err: errors.New("crc")}, http.StatusInternalServerError},
		{&lifecycle.PartialDeleteError{Name: "x"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
