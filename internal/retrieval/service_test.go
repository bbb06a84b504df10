package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/lifecycle"
	"github.com/hyperjump/shiryo/internal/manifest"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/vectorstore"
)

type countingOpener struct {
	*lifecycle.Manager
	opens atomic.Int32
}

func (o *countingOpener) Open(ctx context.Context, name string) (*vectorstore.Store, error) {
	o.opens.Add(1)
	return o.Manager.Open(ctx, name)
}

var testQueryConfig = config.QueryConfig{
	DefaultK:            5,
	MaxK:                50,
	CandidateMultiplier: 4,
	KeywordWeight:       0.3,
	SemanticWeight:      0.7,
}

func setup(t *testing.T) (*Service, *countingOpener) {
	t.Helper()
	l := layout.New(t.TempDir())
	emb := embedding.NewHashEmbedder(64)
	m, err := lifecycle.NewManager(l, manifest.NewFileStore(l), emb, lifecycle.Config{
		ChunkSize: 200, ChunkOverlap: 0, LockTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Ingest(context.Background(), "fruit", []models.FileInput{
		{Name: "apples.pdf", Text: "apples are red and crunchy"},
		{Name: "ocean.pdf", Text: "the ocean is deep and blue"},
		{Name: "pears.pdf", Text: "pears are green and sweet"},
	})
	if err != nil {
		t.Fatal(err)
	}
	o := &countingOpener{Manager: m}
	s := NewService(o, emb, testQueryConfig)
	t.Cleanup(func() { _ = s.Close() })
	return s, o
}

func TestQuery(t *testing.T) {
	s, _ := setup(t)
	resp, err := s.Query(context.Background(), models.Query{Index: "fruit", Text: "red apples", K: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(resp.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(resp.Hits))
	}
	if resp.Hits[0].Source != "apples.pdf" {
		t.Errorf("top hit = %s, want apples.pdf", resp.Hits[0].Source)
	}
	if resp.Hits[0].Rank != 1 || resp.Hits[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", resp.Hits[0].Rank, resp.Hits[1].Rank)
	}
	if resp.Hits[0].Score < resp.Hits[1].Score {
		t.Errorf("hits not sorted: %f < %f", resp.Hits[0].Score, resp.Hits[1].Score)
	}
}

func TestQuery_defaultKCappedBySize(t *testing.T) {
	s, _ := setup(t)
	resp, err := s.Query(context.Background(), models.Query{Index: "fruit", Text: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 3 {
		t.Errorf("got %d hits, want all 3 chunks", len(resp.Hits))
	}
}

func TestQuery_errors(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.Query(ctx, models.Query{Index: "missing", Text: "x"})
	if !errors.Is(err, manifest.ErrIndexNotFound) {
		t.Errorf("missing index error = %v, want ErrIndexNotFound", err)
	}

	_, err = s.Query(ctx, models.Query{Index: "fruit", Text: "  "})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("blank query error = %v, want *ValidationError", err)
	}
}

func TestQuery_modelMismatch(t *testing.T) {
	_, o := setup(t)
	other := NewService(o, embedding.NewHashEmbedder(32), testQueryConfig)
	_, err := other.Query(context.Background(), models.Query{Index: "fruit", Text: "apples"})
	if !errors.Is(err, ErrModelMismatch) {
		t.Errorf("error = %v, want ErrModelMismatch", err)
	}
}

func TestQuery_cacheInvalidatedOnIngest(t *testing.T) {
	s, o := setup(t)
	ctx := context.Background()
	q := models.Query{Index: "fruit", Text: "bananas", K: 10}

	if _, err := s.Query(ctx, q); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Query(ctx, q); err != nil {
		t.Fatal(err)
	}
	if got := o.opens.Load(); got != 1 {
		t.Fatalf("opens = %d, want 1 (cached)", got)
	}

	if _, err := o.Ingest(ctx, "fruit", []models.FileInput{{Name: "bananas.pdf", Text: "bananas are yellow"}}); err != nil {
		t.Fatal(err)
	}
	resp, err := s.Query(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if got := o.opens.Load(); got != 2 {
		t.Errorf("opens = %d, want 2 after ingest", got)
	}
	if len(resp.Hits) != 4 || resp.Hits[0].Source != "bananas.pdf" {
		t.Errorf("new content not served: %d hits, top %s", len(resp.Hits), resp.Hits[0].Source)
	}

	if err := o.DeleteIndex(ctx, "fruit"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Query(ctx, q); !errors.Is(err, manifest.ErrIndexNotFound) {
		t.Errorf("query after delete error = %v, want ErrIndexNotFound", err)
	}
}

func TestQuery_rerank(t *testing.T) {
	s, _ := setup(t)
	resp, err := s.Query(context.Background(), models.Query{Index: "fruit", Text: "green pears", K: 1, Rerank: true})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Reranked || len(resp.Hits) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Hits[0].Source != "pears.pdf" {
		t.Errorf("top hit = %s, want pears.pdf", resp.Hits[0].Source)
	}
	if resp.Hits[0].KeywordScore != 1 {
		t.Errorf("best keyword match should be normalized to 1, got %f", resp.Hits[0].KeywordScore)
	}
}

func TestAsk(t *testing.T) {
	s, _ := setup(t)
	resp, err := s.Ask(context.Background(), models.AskRequest{Index: "fruit", Question: "what colour are apples", K: 1})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(resp.Answer, "apples are red") {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(resp.Chunks) != 1 {
		t.Errorf("got %d chunks, want 1", len(resp.Chunks))
	}
}

func TestQuery_seesChangesFromAnotherManager(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	emb := embedding.NewHashEmbedder(64)
	newManager := func() *lifecycle.Manager {
		l := layout.New(root)
		m, err := lifecycle.NewManager(l, manifest.NewFileStore(l), emb, lifecycle.Config{
			ChunkSize: 200, ChunkOverlap: 0, LockTimeout: 5 * time.Second,
		})
		if err != nil {
			t.Fatal(err)
		}
		return m
	}
	// served and other share a root but not OnChange listeners, as two processes would
	served, other := newManager(), newManager()
	o := &countingOpener{Manager: served}
	s := NewService(o, emb, testQueryConfig)
	t.Cleanup(func() { _ = s.Close() })

	if _, err := served.Ingest(ctx, "docs", []models.FileInput{{Name: "a.pdf", Text: "alpha particles"}}); err != nil {
		t.Fatal(err)
	}
	q := models.Query{Index: "docs", Text: "beta decay", K: 10}
	for i := 0; i < 2; i++ {
		resp, err := s.Query(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Hits) != 1 {
			t.Fatalf("got %d hits, want 1", len(resp.Hits))
		}
	}
	if got := o.opens.Load(); got != 1 {
		t.Fatalf("opens = %d, want 1 (cached)", got)
	}

	if _, err := other.Ingest(ctx, "docs", []models.FileInput{{Name: "b.pdf", Text: "beta decay"}}); err != nil {
		t.Fatal(err)
	}
	resp, err := s.Query(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 2 || resp.Hits[0].Source != "b.pdf" {
		t.Errorf("merge by other manager not served: %d hits", len(resp.Hits))
	}
	if got := o.opens.Load(); got != 2 {
		t.Errorf("opens = %d, want 2 after external ingest", got)
	}

	if err := other.DeleteIndex(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Query(ctx, q); !errors.Is(err, manifest.ErrIndexNotFound) {
		t.Errorf("query after external delete error = %v, want ErrIndexNotFound", err)
	}
}
