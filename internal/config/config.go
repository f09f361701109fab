// Package config loads recall's YAML configuration and applies defaults,
// environment overrides, and command-line overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lazypower/recall/internal/engine"
	"github.com/lazypower/recall/internal/ttl"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all recall configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Memory    TTLConfig       `yaml:"memory"`
	Pages     TTLConfig       `yaml:"pages"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	DataDir string `yaml:"data_dir"`
}

// TTLConfig is the retention policy of one store. AutoCleanup is a pointer
// so an explicit false survives merging; nil means true.
type TTLConfig struct {
	ttl.Retention `yaml:",inline"`
	AutoCleanup   *bool `yaml:"auto_cleanup,omitempty"`
}

// AutoCleanupEnabled reports whether Load purges expired entries first.
func (t TTLConfig) AutoCleanupEnabled() bool {
	return t.AutoCleanup == nil || *t.AutoCleanup
}

// Options converts the policy into store options.
func (t TTLConfig) Options() []ttl.Option {
	return []ttl.Option{
		ttl.WithRetention(t.Retention),
		ttl.WithAutoCleanup(t.AutoCleanupEnabled()),
	}
}

type RetrievalConfig struct {
	UseVector  bool              `yaml:"use_vector"`
	TopK       int               `yaml:"top_k"`
	MemoryTool bool              `yaml:"memory_tool"` // expose memory abstracts as tool:memory
	BM25       engine.BM25Params `yaml:"bm25"`
}

type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai", "gemini", "ollama", "tfidf"
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxTerms       int    `yaml:"max_terms"` // tfidf vocabulary size
	Cache          *bool  `yaml:"cache,omitempty"`
}

// CacheEnabled reports whether embeddings are cached (sqlite backend only).
func (e EmbeddingConfig) CacheEnabled() bool {
	return e.Cache == nil || *e.Cache
}

// Engine converts the section into the engine's provider configuration.
func (e EmbeddingConfig) Engine() engine.EmbeddingConfig {
	return engine.EmbeddingConfig{
		Provider: e.Provider,
		APIKey:   e.APIKey,
		BaseURL:  e.BaseURL,
		Model:    e.Model,
		Timeout:  time.Duration(e.TimeoutSeconds) * time.Second,
		MaxTerms: e.MaxTerms,
	}
}

// DefaultDataDir returns ~/.recall.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recall"
	}
	return filepath.Join(home, ".recall")
}

// Default returns a Config with sensible defaults. TTL is disabled for both
// stores until a retention window is configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			DataDir: DefaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK: engine.DefaultTopK,
			BM25: engine.DefaultBM25Params(),
		},
		Embedding: EmbeddingConfig{
			Provider:       engine.ProviderOpenAI,
			Model:          engine.DefaultOpenAIModel,
			TimeoutSeconds: int(engine.DefaultEmbedTimeout / time.Second),
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv fills credentials and endpoints from the environment when the
// file left them empty. RECALL_DATA_DIR always wins.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if dir := getenv("RECALL_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", engine.ProviderOpenAI:
		setIfEmpty(&c.Embedding.APIKey, getenv("OPENAI_API_KEY"))
		setIfEmpty(&c.Embedding.BaseURL, getenv("OPENAI_BASE_URL"))
	case engine.ProviderGemini:
		setIfEmpty(&c.Embedding.APIKey, getenv("GEMINI_API_KEY"))
	case engine.ProviderOllama:
		setIfEmpty(&c.Embedding.BaseURL, getenv("OLLAMA_HOST"))
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Server.Bind != "" {
		c.Server.Bind = source.Server.Bind
	}
	if source.Server.Port > 0 {
		c.Server.Port = source.Server.Port
	}
	if source.Storage.Backend != "" {
		c.Storage.Backend = source.Storage.Backend
	}
	if source.Storage.DataDir != "" {
		c.Storage.DataDir = source.Storage.DataDir
	}
	c.Memory.merge(source.Memory)
	c.Pages.merge(source.Pages)
	if source.Retrieval.UseVector {
		c.Retrieval.UseVector = true
	}
	if source.Retrieval.MemoryTool {
		c.Retrieval.MemoryTool = true
	}
	if source.Retrieval.TopK > 0 {
		c.Retrieval.TopK = source.Retrieval.TopK
	}
	if source.Retrieval.BM25 != (engine.BM25Params{}) {
		c.Retrieval.BM25 = source.Retrieval.BM25
	}
	if source.Embedding.Provider != "" {
		c.Embedding.Provider = source.Embedding.Provider
	}
	if source.Embedding.APIKey != "" {
		c.Embedding.APIKey = source.Embedding.APIKey
	}
	if source.Embedding.BaseURL != "" {
		c.Embedding.BaseURL = source.Embedding.BaseURL
	}
	if source.Embedding.Model != "" {
		c.Embedding.Model = source.Embedding.Model
	}
	if source.Embedding.TimeoutSeconds > 0 {
		c.Embedding.TimeoutSeconds = source.Embedding.TimeoutSeconds
	}
	if source.Embedding.MaxTerms > 0 {
		c.Embedding.MaxTerms = source.Embedding.MaxTerms
	}
	if source.Embedding.Cache != nil {
		c.Embedding.Cache = source.Embedding.Cache
	}
}

func (t *TTLConfig) merge(source TTLConfig) {
	if _, enabled := source.Window(); enabled {
		t.Retention = source.Retention
	}
	if source.AutoCleanup != nil {
		t.AutoCleanup = source.AutoCleanup
	}
}

// Validate rejects values no component can serve.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage backend %q: want %q or %q", c.Storage.Backend, BackendFile, BackendSQLite)
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage data_dir is empty")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
