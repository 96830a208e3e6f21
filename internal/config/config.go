// Package config resolves runtime settings from defaults, an optional YAML
// file and environment variables. Command-line flags are applied last by the
// cli package.
package config

import (
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/memstore/internal/chunker"
	"github.com/rcliao/memstore/internal/embedding"
	"github.com/rcliao/memstore/internal/search"
)

// Config holds all tunables.
type Config struct {
	DBPath    string           `yaml:"db"`
	LogLevel  string           `yaml:"log_level"`
	Search    Search           `yaml:"search"`
	Embedding embedding.Config `yaml:"embedding"`
	Chunking  chunker.Options  `yaml:"-"`
}

// Search holds query defaults.
type Search struct {
	DefaultLimit  int     `yaml:"default_limit"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:   DefaultDBPath(),
		LogLevel: "info",
		Search: Search{
			DefaultLimit:  search.DefaultLimit,
			KeywordWeight: search.DefaultKeywordWeight,
		},
		Embedding: embedding.Config{Provider: "hash"},
		Chunking:  chunker.DefaultOptions(),
	}
}

// DefaultDBPath is ~/.memstore/memory.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memstore", "memory.db")
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, goerr.Wrap(err, "read config file", goerr.V("path", path))
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, goerr.Wrap(err, "parse config file", goerr.V("path", path))
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MEMSTORE_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MEMSTORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MEMSTORE_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("MEMSTORE_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("MEMSTORE_EMBED_URL"); v != "" {
		cfg.Embedding.URL = v
	}
	cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return goerr.New("db path is empty")
	}
	if c.Search.DefaultLimit <= 0 {
		return goerr.New("search.default_limit must be positive", goerr.V("value", c.Search.DefaultLimit))
	}
	if err := search.ValidateWeight(c.Search.KeywordWeight); err != nil {
		return goerr.Wrap(err, "search.keyword_weight")
	}
	return nil
}
