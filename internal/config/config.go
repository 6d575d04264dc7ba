// Package config provides configuration loading and structs for the kotae server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Upload    UploadConfig    `yaml:"upload"`
	Chat      ChatConfig      `yaml:"chat"`
	Session   SessionConfig   `yaml:"session"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "mock".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	// Dimensions is only used by the mock provider; real providers decide their own.
	Dimensions        int `yaml:"dimensions"`
	MaxTokensPerBatch int `yaml:"max_tokens_per_batch"`
	// Concurrency is the number of embedding batches in flight during a bulk build.
	Concurrency int           `yaml:"concurrency"`
	TimeoutSecs int           `yaml:"timeout_secs"`
	CacheSize   int           `yaml:"cache_size"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	// Mode is "character" (fixed windows with overlap) or "paragraph".
	Mode              string `yaml:"mode"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	ParagraphMaxChars int    `yaml:"paragraph_max_chars"`
	// RemoveStopwords drops common English words from document text before splitting.
	RemoveStopwords bool `yaml:"remove_stopwords"`
}

// UploadConfig holds settings for documents uploaded over HTTP.
type UploadConfig struct {
	ChunkSize    int   `yaml:"chunk_size"`
	ChunkOverlap int   `yaml:"chunk_overlap"`
	MaxBytes     int64 `yaml:"max_bytes"`
}

// ChatConfig holds completion settings.
type ChatConfig struct {
	Model string `yaml:"model"`
	TopK  int    `yaml:"top_k"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// APIKey returns the provider API key from the environment variable named by APIKeyEnv.
func (e *EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// Timeout returns the provider request timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings that would make chunking or batching impossible.
func (c *Config) Validate() error {
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking: chunk_overlap (%d) must be less than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Upload.ChunkOverlap >= c.Upload.ChunkSize {
		return fmt.Errorf("upload: chunk_overlap (%d) must be less than chunk_size (%d)",
			c.Upload.ChunkOverlap, c.Upload.ChunkSize)
	}
	switch c.Chunking.Mode {
	case ChunkModeCharacter, ChunkModeParagraph:
	default:
		return fmt.Errorf("chunking: unknown mode %q (supported: %s, %s)", c.Chunking.Mode, ChunkModeCharacter, ChunkModeParagraph)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("embedding: unknown provider %q (supported: %s, %s)", c.Embedding.Provider, ProviderOpenAI, ProviderMock)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
