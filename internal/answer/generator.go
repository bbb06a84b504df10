// Package answer turns retrieved chunks into an answer to a question.
package answer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/models"
)

// ErrNoContext is returned when a generator is asked to answer with no chunks.
var ErrNoContext = errors.New("no context chunks")

// Generator answers a question from retrieved chunks. History holds earlier
// turns of the same conversation, oldest first.
type Generator interface {
	Answer(ctx context.Context, question string, history []models.Turn, chunks []*models.ChunkHit) (string, error)
	Name() string
}

// ProviderError reports a failure of the upstream answer model.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s answer provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// New creates the generator selected by cfg.
func New(cfg config.AnswerConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("answer provider openai: %s is not set", cfg.APIKeyEnv)
		}
		return NewOpenAIGenerator(key, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxContext), nil
	case "extractive", "":
		return NewExtractiveGenerator(cfg.MaxContext), nil
	default:
		return nil, fmt.Errorf("unknown answer provider %q", cfg.Provider)
	}
}

// contextText joins chunk contents, best first, stopping before maxChars.
// The first chunk is always included, cut to maxChars if needed.
func contextText(chunks []*models.ChunkHit, maxChars int) string {
	var b strings.Builder
	for i, c := range chunks {
		text := strings.TrimSpace(c.Content)
		if text == "" {
			continue
		}
		sep := ""
		if b.Len() > 0 {
			sep = "\n\n"
		}
		if maxChars > 0 && b.Len()+len(sep)+len(text) > maxChars {
			if i == 0 {
				b.WriteString(truncateRunes(text, maxChars))
			}
			break
		}
		b.WriteString(sep)
		b.WriteString(text)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
