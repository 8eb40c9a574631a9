package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for vidsearch.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Import    ImportConfig    `yaml:"import"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend        string `yaml:"backend"`          // "bolt", "json", "memory", "postgres"
	Path           string `yaml:"path"`             // file path for bolt/json; relative to the data dir
	DatabaseURLEnv string `yaml:"database_url_env"` // environment variable holding the postgres URL
	Table          string `yaml:"table"`            // postgres table name
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`    // "local", "openai", "ollama", "mock"
	Model     string        `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string        `yaml:"base_url"`    // OpenAI-compatible or Ollama server URL
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"` // per-call limit for embedding requests (0 = none)
}

// SearchConfig holds query and index configuration.
type SearchConfig struct {
	DefaultK          int           `yaml:"default_k"`
	MinScore          float64       `yaml:"min_score"`    // Filter results below this score (0 = disabled)
	AutoReindex       bool          `yaml:"auto_reindex"` // Re-embed stored transcripts when the model changes
	CacheSize         int           `yaml:"cache_size"`   // Query cache entries (0 = disabled)
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	ParallelThreshold int           `yaml:"parallel_threshold"`
	Workers           int           `yaml:"workers"`
}

// ImportConfig holds bulk import configuration.
type ImportConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	APIKeyEnv       string        `yaml:"api_key_env"` // when the variable is set, requests must send it as X-API-Key
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // optional JSON log file in addition to stderr
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:        "bolt",
			DatabaseURLEnv: "VIDSEARCH_DATABASE_URL",
			Table:          "video_records",
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			Model:     "hashing-v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 512,
			BatchSize: 64,
			Timeout:   60 * time.Second,
		},
		Search: SearchConfig{
			DefaultK:          5,
			AutoReindex:       false,
			CacheSize:         128,
			CacheTTL:          5 * time.Minute,
			ParallelThreshold: 4096,
			Workers:           4,
		},
		Import: ImportConfig{
			Includes: []string{"**/*.json"},
			Excludes: []string{"**/.vidsearch/**", "**/node_modules/**", "**/.git/**"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			APIKeyEnv:       "VIDSEARCH_API_KEY",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    120 * time.Second, // embedding calls can be slow
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for vidsearch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "vidsearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(DataDir(dir), "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "bolt", "json", "memory", "postgres":
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}
	switch c.Embedding.Provider {
	case "local", "openai", "ollama", "mock":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("search default_k must be positive, got %d", c.Search.DefaultK)
	}
	if c.Search.MinScore < -1 || c.Search.MinScore > 1 {
		return fmt.Errorf("search min_score must be within [-1, 1], got %f", c.Search.MinScore)
	}
	return nil
}

// DataDir returns the directory holding vidsearch state under root.
func DataDir(root string) string {
	return filepath.Join(root, ".vidsearch")
}

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir(root string) error {
	return os.MkdirAll(DataDir(root), 0755)
}

// StorePath returns the file used by file-backed store backends.
func (c *Config) StorePath(root string) string {
	if c.Store.Path != "" {
		if filepath.IsAbs(c.Store.Path) {
			return c.Store.Path
		}
		return filepath.Join(DataDir(root), c.Store.Path)
	}
	switch c.Store.Backend {
	case "json":
		return filepath.Join(DataDir(root), "records.json")
	default:
		return filepath.Join(DataDir(root), "records.db")
	}
}
