package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Backend != "bolt" {
		t.Errorf("expected Backend=bolt, got %s", cfg.Store.Backend)
	}
	if cfg.Embedding.Dimension != 512 {
		t.Errorf("expected Dimension=512, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Search.DefaultK != 5 {
		t.Errorf("expected DefaultK=5, got %d", cfg.Search.DefaultK)
	}
	if cfg.Search.CacheTTL != 5*time.Minute {
		t.Errorf("expected CacheTTL=5m, got %s", cfg.Search.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "vidsearch.yaml")

	content := `
store:
  backend: json
embedding:
  provider: openai
  model: text-embedding-3-small
  dimension: 1536
  timeout: 15s
search:
  default_k: 10
  min_score: 0.2
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != "json" {
		t.Errorf("expected Backend=json, got %s", cfg.Store.Backend)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("expected Dimension=1536, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Embedding.Timeout != 15*time.Second {
		t.Errorf("expected Timeout=15s, got %s", cfg.Embedding.Timeout)
	}
	if cfg.Search.DefaultK != 10 {
		t.Errorf("expected DefaultK=10, got %d", cfg.Search.DefaultK)
	}
	// untouched sections keep their defaults
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected Addr=:8080, got %s", cfg.Server.Addr)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "vidsearch.yaml")

	content := `
server:
  addr: ":9999"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected Addr=:9999, got %s", cfg.Server.Addr)
	}
}

func TestLoadFromDir_DataDirConfig(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	content := "logging:\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(DataDir(tmpDir), "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected Level=debug, got %s", cfg.Logging.Level)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidsearch.yaml")
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Model = "nomic-embed-text"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Embedding.Model != "nomic-embed-text" {
		t.Errorf("expected Model=nomic-embed-text, got %s", loaded.Embedding.Model)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"provider", func(c *Config) { c.Embedding.Provider = "tfhub" }},
		{"dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"default_k", func(c *Config) { c.Search.DefaultK = -1 }},
		{"min_score", func(c *Config) { c.Search.MinScore = 2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	root := "/home/user/videos"

	if got, want := cfg.StorePath(root), filepath.Join(root, ".vidsearch", "records.db"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	cfg.Store.Backend = "json"
	if got, want := cfg.StorePath(root), filepath.Join(root, ".vidsearch", "records.json"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	cfg.Store.Path = "/var/lib/vidsearch/db.json"
	if got := cfg.StorePath(root); got != "/var/lib/vidsearch/db.json" {
		t.Errorf("expected absolute path to be kept, got %s", got)
	}
}
