package config

import "time"

// DefaultIndexName is the index used by folder ingestion when none is configured.
const DefaultIndexName = "Default Index"

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
	if cfg.Storage.IndexRoot == "" {
		cfg.Storage.IndexRoot = "/usr/local/var/shiryo/indices"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 2000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 20
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "flat"
	}
	if cfg.Query.DefaultK == 0 {
		cfg.Query.DefaultK = 5
	}
	if cfg.Query.MaxK == 0 {
		cfg.Query.MaxK = 50
	}
	if cfg.Query.CandidateMultiplier == 0 {
		cfg.Query.CandidateMultiplier = 4
	}
	if cfg.Query.KeywordWeight == 0 && cfg.Query.SemanticWeight == 0 {
		cfg.Query.KeywordWeight = 0.3
		cfg.Query.SemanticWeight = 0.7
	}
	if cfg.Answer.Provider == "" {
		cfg.Answer.Provider = "openai"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = cfg.Embedding.APIKeyEnv
	}
	if cfg.Answer.MaxContext == 0 {
		cfg.Answer.MaxContext = 12000
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf"}
	}
	if cfg.Watch.TargetIndex == "" {
		cfg.Watch.TargetIndex = DefaultIndexName
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Lock.Timeout == 0 {
		cfg.Lock.Timeout = 30 * time.Second
	}
}
