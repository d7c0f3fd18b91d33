package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model. It captures the archive
// location, output paths, lookup credentials and tuning, and the handle
// cache location.
type Config struct {
	Archive     ArchiveConfig     `yaml:"archive"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Lookup      LookupConfig      `yaml:"lookup"`
	Cache       CacheConfig       `yaml:"cache"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ArchiveConfig struct {
	// Path to the export zip.
	Path string `yaml:"path"`
	// WorkDir receives the extracted archive; extraction is idempotent.
	WorkDir string `yaml:"workDir"`
	// OutputDir receives relocated media.
	OutputDir string `yaml:"outputDir"`
}

type CredentialsConfig struct {
	// API bearer token for handle lookup. If empty, read from env
	// X_BEARER_TOKEN; still empty disables remote resolution.
	BearerToken string `yaml:"bearerToken"`
}

type LookupConfig struct {
	RPS           float64 `yaml:"rps"`
	Burst         int     `yaml:"burst"`
	MaxAttempts   int     `yaml:"maxAttempts"`
	BaseBackoffMS int     `yaml:"baseBackoffMs"`
}

type CacheConfig struct {
	// Resolved-handle cache; empty disables caching.
	DBPath string `yaml:"dbPath"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Archive: ArchiveConfig{
			WorkDir:   "./plumage-work",
			OutputDir: "./plumage-output",
		},
		Lookup: LookupConfig{RPS: 2.0, Burst: 10, MaxAttempts: 5, BaseBackoffMS: 500},
		Cache:  CacheConfig{DBPath: "./plumage-cache.db"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.BearerToken == "" {
		c.Credentials.BearerToken = os.Getenv("X_BEARER_TOKEN")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
