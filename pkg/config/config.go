// Package config loads trailstore configuration with layered sources:
// built-in defaults, then an optional YAML file, then environment
// variables. Precedence: ENV > file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/trailhq/trailstore/pkg/shard"
	"github.com/trailhq/trailstore/pkg/store"
	"github.com/trailhq/trailstore/pkg/tier"
)

// DefaultConfigPaths are searched in order; the first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/trailstore/config.yaml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "TRAILSTORE_CONFIG"

// envPrefix namespaces environment overrides, e.g.
// TRAILSTORE_STORAGE_PATH maps to storage.path.
const envPrefix = "TRAILSTORE_"

// Config is the full store configuration.
type Config struct {
	Sharding  shard.Config    `koanf:"sharding"`
	Retention RetentionConfig `koanf:"retention"`
	Storage   StorageConfig   `koanf:"storage"`
	Query     QueryConfig     `koanf:"query"`
	Directory DirectoryConfig `koanf:"directory"`
	Logging   LoggingConfig   `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// RetentionConfig holds the per-tier retention policies.
type RetentionConfig struct {
	Elevated tier.RetentionPolicy `koanf:"elevated"`
	Premium  tier.RetentionPolicy `koanf:"premium"`
	Standard tier.RetentionPolicy `koanf:"standard"`
}

// Policies converts to the map form the store consumes.
func (r RetentionConfig) Policies() map[tier.Tier]tier.RetentionPolicy {
	return map[tier.Tier]tier.RetentionPolicy{
		tier.Elevated: r.Elevated,
		tier.Premium:  r.Premium,
		tier.Standard: r.Standard,
	}
}

// StorageConfig selects and tunes the partition backend.
type StorageConfig struct {
	// Backend is "badger" or "memory".
	Backend string `koanf:"backend"`

	// Path is the badger data directory.
	Path string `koanf:"path"`

	// MaxMemoryMB bounds badger memtable and cache memory.
	MaxMemoryMB int64 `koanf:"max_memory_mb"`
}

// QueryConfig bounds the read path.
type QueryConfig struct {
	MaxRangeDays int           `koanf:"max_range_days"`
	DefaultLimit int           `koanf:"default_limit"`
	MaxLimit     int           `koanf:"max_limit"`
	Timeout      time.Duration `koanf:"timeout"`
}

// DirectoryConfig tunes subject-directory lookups on the write path.
type DirectoryConfig struct {
	// File points at a JSON table of subject attributes. Empty means
	// every subject classifies as standard.
	File string `koanf:"file"`

	LookupTimeout time.Duration `koanf:"lookup_timeout"`
}

// LoggingConfig mirrors the logging.Setup parameters.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig controls the operational metrics listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retention := tier.DefaultRetention()
	return &Config{
		Sharding: shard.Config{
			Strategy:       shard.StrategyHybrid,
			Granularity:    shard.Monthly,
			HashShards:     shard.DefaultHashShards,
			PremiumShards:  shard.DefaultPremiumShards,
			StandardShards: shard.DefaultStandardShards,
		},
		Retention: RetentionConfig{
			Elevated: retention[tier.Elevated],
			Premium:  retention[tier.Premium],
			Standard: retention[tier.Standard],
		},
		Storage: StorageConfig{
			Backend:     "badger",
			Path:        "./data/trailstore",
			MaxMemoryMB: DefaultMaxMemoryMB,
		},
		Query: QueryConfig{
			MaxRangeDays: DefaultMaxRangeDays,
			DefaultLimit: DefaultQueryLimit,
			MaxLimit:     MaxQueryLimit,
			Timeout:      QueryTimeout,
		},
		Directory: DirectoryConfig{
			LookupTimeout: DirectoryLookupTimeout,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9464"},
	}
}

// Load reads configuration from defaults, an optional file, and the
// environment, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the store cannot run with.
func (c *Config) Validate() error {
	if _, err := shard.NewDeriver(c.Sharding); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "badger", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "badger" && c.Storage.Path == "" {
		return fmt.Errorf("badger backend requires storage.path")
	}
	if c.Query.MaxRangeDays <= 0 {
		return fmt.Errorf("query.max_range_days must be positive")
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit must be at least query.default_limit")
	}
	for name, p := range map[string]tier.RetentionPolicy{
		"elevated": c.Retention.Elevated,
		"premium":  c.Retention.Premium,
		"standard": c.Retention.Standard,
	} {
		if p.ArchiveDays <= 0 {
			return fmt.Errorf("retention.%s.archive_days must be positive", name)
		}
	}
	return nil
}

// StoreOptions converts the query and retention settings for store.New.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Retention:     c.Retention.Policies(),
		MaxQueryRange: time.Duration(c.Query.MaxRangeDays) * 24 * time.Hour,
		DefaultLimit:  c.Query.DefaultLimit,
		MaxLimit:      c.Query.MaxLimit,
	}
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
