// Package config loads and validates the peasant configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheBackendFS     = "fs"
	CacheBackendSQLite = "sqlite"
)

// Config is the top-level configuration.
type Config struct {
	// MaxConcurrency bounds how many builds run at once.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Account is the operator's own source-hosting account; build scripts
	// owned by it skip the accessibility check.
	Account string `yaml:"account"`

	// WorkspaceRoot overrides where build directories are created. Empty
	// defers to PEASANT_BUILD_DIR or the OS temp directory.
	WorkspaceRoot string `yaml:"workspace_root"`

	Cache CacheConfig `yaml:"cache"`
	Forge ForgeConfig `yaml:"forge"`
	NATS  NATSConfig  `yaml:"nats"`
}

// CacheConfig selects the durable store backend.
type CacheConfig struct {
	// Backend is "fs" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the cache directory (fs) or database file (sqlite).
	Path string `yaml:"path"`
}

// ForgeConfig configures the source-hosting client.
type ForgeConfig struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token"`
}

// NATSConfig configures completion-event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxConcurrency: 2,
		Cache: CacheConfig{
			Backend: CacheBackendFS,
			Path:    ".peasant",
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "peasant.builds",
		},
	}
}

// Load reads the configuration file at path, applying defaults for absent
// fields. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv lets the environment win over the file, so secrets need not
// live on disk.
func (c *Config) applyEnv() {
	if env := os.Getenv("PEASANT_FORGE_TOKEN"); env != "" {
		c.Forge.Token = env
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative")
	}
	switch c.Cache.Backend {
	case CacheBackendFS, CacheBackendSQLite:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache path is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url is required when nats is enabled")
	}
	return nil
}
