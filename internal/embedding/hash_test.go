package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/pkg/utils"
)

func TestHashEmbedder_deterministicUnitVectors(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(32)
	a, err := e.Embed(ctx, "Hello world")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "hello, WORLD")
	if len(a) != 32 {
		t.Fatalf("len = %d", len(a))
	}
	if math.Abs(utils.Dot(a, a)-1) > 1e-5 {
		t.Errorf("norm^2 = %f, want 1", utils.Dot(a, a))
	}
	if math.Abs(utils.Dot(a, b)-1) > 1e-5 {
		t.Error("case and punctuation should not change the embedding")
	}
}

func TestHashEmbedder_sharedWordsAreCloser(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(256)
	q, _ := e.Embed(ctx, "invoice payment terms")
	near, _ := e.Embed(ctx, "payment terms for the invoice are thirty days")
	far, _ := e.Embed(ctx, "the cat sat on a mat")
	if utils.Dot(q, near) <= utils.Dot(q, far) {
		t.Errorf("near=%f far=%f", utils.Dot(q, near), utils.Dot(q, far))
	}
}

func TestHashEmbedder_emptyTextNotZero(t *testing.T) {
	v, _ := NewHashEmbedder(8).Embed(context.Background(), "")
	if utils.Dot(v, v) == 0 {
		t.Error("empty text should still produce a unit vector")
	}
}

type failingEmbedder struct{ *HashEmbedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, &ProviderError{Provider: "test", Err: errors.New("rate limited")}
}

func TestEmbedAll(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := EmbedAll(ctx, inner, texts, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 5 || inner.texts != 5 {
		t.Errorf("got %d vectors, %d upstream texts", len(vecs), inner.texts)
	}

	_, err = EmbedAll(ctx, failingEmbedder{NewHashEmbedder(8)}, texts, 2)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "test" {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Unwrap().Error() != "rate limited" {
		t.Errorf("cause changed: %v", pe.Unwrap())
	}
}

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "hash", Dimensions: 12, CacheSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}
	if e.Dimensions() != 12 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
	if _, err := New(config.EmbeddingConfig{Provider: "nope", Dimensions: 12}); err == nil {
		t.Error("expected error for unknown provider")
	}
	t.Setenv("SHIRYO_TEST_MISSING_KEY", "")
	if _, err := New(config.EmbeddingConfig{Provider: "openai", APIKeyEnv: "SHIRYO_TEST_MISSING_KEY", Dimensions: 12}); err == nil {
		t.Error("expected error when api key is missing")
	}
}
