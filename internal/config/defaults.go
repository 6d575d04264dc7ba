package config

import "time"

// Supported chunking modes.
const (
	ChunkModeCharacter = "character"
	ChunkModeParagraph = "paragraph"
)

// Supported embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// DefaultMaxTokensPerBatch is the per-request token ceiling used when batching embeddings.
const DefaultMaxTokensPerBatch = 250000

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
		cfg.Server.Port = 8000
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.MaxTokensPerBatch == 0 {
		cfg.Embedding.MaxTokensPerBatch = DefaultMaxTokensPerBatch
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 1
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 60
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.RedisTTL == 0 {
		cfg.Embedding.RedisTTL = 24 * time.Hour
	}
	if cfg.Chunking.Mode == "" {
		cfg.Chunking.Mode = ChunkModeCharacter
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 500
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 100
	}
	if cfg.Chunking.ParagraphMaxChars == 0 {
		cfg.Chunking.ParagraphMaxChars = 1000
	}
	if cfg.Upload.ChunkSize == 0 {
		cfg.Upload.ChunkSize = 1000
	}
	if cfg.Upload.ChunkOverlap == 0 {
		cfg.Upload.ChunkOverlap = 200
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 32 << 20
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4.1-mini"
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 3
	}
	if cfg.Session.IdleTTL == 0 {
		cfg.Session.IdleTTL = time.Hour
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
