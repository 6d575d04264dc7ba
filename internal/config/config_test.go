package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  provider: mock
  dimensions: 8
  max_tokens_per_batch: 1000
chunking:
  chunk_size: 10
  chunk_overlap: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Embedding.Provider != ProviderMock || cfg.Embedding.Dimensions != 8 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Embedding.MaxTokensPerBatch != 1000 {
		t.Errorf("max_tokens_per_batch: got %d", cfg.Embedding.MaxTokensPerBatch)
	}
	if cfg.Chunking.ChunkSize != 10 || cfg.Chunking.ChunkOverlap != 4 {
		t.Errorf("unexpected chunking config: %+v", cfg.Chunking)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_durations(t *testing.T) {
	path := writeConfig(t, `
session:
  idle_ttl: 90s
embedding:
  redis_ttl: 2h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.IdleTTL != 90*time.Second {
		t.Errorf("idle_ttl: got %v", cfg.Session.IdleTTL)
	}
	if cfg.Embedding.RedisTTL != 2*time.Hour {
		t.Errorf("redis_ttl: got %v", cfg.Embedding.RedisTTL)
	}
}

func TestLoad_rejectsOverlapNotLessThanSize(t *testing.T) {
	path := writeConfig(t, `
chunking:
  chunk_size: 10
  chunk_overlap: 10
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when chunk_overlap >= chunk_size")
	}
}

func TestLoad_rejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: carrier-pigeon
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
watch:
  directories: ["./dev/sample"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	want := filepath.Join(filepath.Dir(path), "dev", "sample")
	if cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8000 {
		t.Errorf("default server: got %+v", cfg.Server)
	}
	if cfg.Embedding.MaxTokensPerBatch != DefaultMaxTokensPerBatch {
		t.Errorf("default max tokens: got %d", cfg.Embedding.MaxTokensPerBatch)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.ChunkOverlap != 100 {
		t.Errorf("default chunking: got %+v", cfg.Chunking)
	}
	if cfg.Upload.ChunkSize != 1000 || cfg.Upload.ChunkOverlap != 200 {
		t.Errorf("default upload chunking: got %+v", cfg.Upload)
	}
	if cfg.Chat.TopK != 3 {
		t.Errorf("default top_k: got %d", cfg.Chat.TopK)
	}
	if cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("default api_key_env: got %s", cfg.Embedding.APIKeyEnv)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestEmbeddingConfig_APIKey(t *testing.T) {
	t.Setenv("KOTAE_TEST_KEY", "sk-test")
	e := &EmbeddingConfig{APIKeyEnv: "KOTAE_TEST_KEY"}
	if e.APIKey() != "sk-test" {
		t.Errorf("APIKey() = %q", e.APIKey())
	}
	if (&EmbeddingConfig{}).APIKey() != "" {
		t.Error("empty APIKeyEnv should give empty key")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
