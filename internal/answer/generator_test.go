package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/models"
)

func hits(contents ...string) []*models.ChunkHit {
	out := make([]*models.ChunkHit, len(contents))
	for i, c := range contents {
		out[i] = &models.ChunkHit{ChunkID: c, Content: c, Rank: i + 1}
	}
	return out
}

func TestContextText(t *testing.T) {
	tests := []struct {
		name     string
		chunks   []*models.ChunkHit
		maxChars int
		want     string
	}{
		{"joins all", hits("alpha", "beta"), 0, "alpha\n\nbeta"},
		{"stops before limit", hits("alpha", "beta"), 8, "alpha"},
		{"cuts first chunk", hits("alphabet", "beta"), 5, "alpha"},
		{"skips blank", hits(" ", "beta"), 0, "beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contextText(tt.chunks, tt.maxChars); got != tt.want {
				t.Errorf("contextText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractiveGenerator(t *testing.T) {
	g := NewExtractiveGenerator(0)
	got, err := g.Answer(context.Background(), "q", nil, hits("hello world", "second"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello world\n\nsecond" {
		t.Errorf("Answer() = %q", got)
	}
	if _, err := g.Answer(context.Background(), "q", nil, nil); !errors.Is(err, ErrNoContext) {
		t.Errorf("Answer() with no chunks error = %v, want ErrNoContext", err)
	}
}

func TestBuildMessages(t *testing.T) {
	history := []models.Turn{{Question: "first?", Answer: "one"}, {Question: "", Answer: "dropped"}}
	msgs := buildMessages("second?", history, "CTX")
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "CTX") {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[1].Content != "first?" || msgs[2].Content != "one" || msgs[2].Role != "assistant" {
		t.Errorf("history not replayed: %+v", msgs[1:3])
	}
	if msgs[3].Role != "user" || msgs[3].Content != "second?" {
		t.Errorf("last message = %+v", msgs[3])
	}
}

func TestOpenAIGenerator(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" It is blue. "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("test-key", srv.URL+"/v1", "gpt-test", 0, 100)
	got, err := g.Answer(context.Background(), "What colour?", nil, hits("the sky is blue"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got != "It is blue." {
		t.Errorf("Answer() = %q", got)
	}
	if gotReq.Model != "gpt-test" || len(gotReq.Messages) != 2 {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "the sky is blue") {
		t.Errorf("context missing from system prompt: %q", gotReq.Messages[0].Content)
	}
}

func TestOpenAIGenerator_providerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("k", srv.URL+"/v1", "m", 0, 0)
	_, err := g.Answer(context.Background(), "q", nil, hits("c"))
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
}

func TestNew(t *testing.T) {
	g, err := New(config.AnswerConfig{Provider: "extractive"})
	if err != nil || g.Name() != "extractive" {
		t.Fatalf("New(extractive) = %v, %v", g, err)
	}
	t.Setenv("SHIRYO_TEST_KEY", "k")
	g, err = New(config.AnswerConfig{Provider: "openai", Model: "m", APIKeyEnv: "SHIRYO_TEST_KEY"})
	if err != nil || g.Name() != "openai:m" {
		t.Fatalf("New(openai) = %v, %v", g, err)
	}
	if _, err := New(config.AnswerConfig{Provider: "nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
