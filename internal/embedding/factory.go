package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/shiryo/internal/config"
)

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache
// when cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "openai":
		e, err = NewOpenAIEmbedder(os.Getenv(cfg.APIKeyEnv), cfg.BaseURL, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
	case "onnx":
		e, err = newONNX(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
	case "hash":
		e = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}
