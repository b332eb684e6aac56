package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultProviderBaseURL = "http://localhost:8001"
	DefaultProviderModel   = "default"
	DefaultProviderTimeout = 5 * time.Minute
	DefaultAPIBind         = "127.0.0.1:4490"
	DefaultMemoryContext   = 10
	DefaultTokenBudget     = 60000
)

// Config represents the complete redline configuration
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	PageCache PageCacheConfig `yaml:"page_cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Editor    EditorConfig    `yaml:"editor"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProviderConfig configures the suggestion provider endpoint
type ProviderConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RequestsPerSec float64 `yaml:"requests_per_sec"` // 0 = no client-side limiting
}

// PageCacheConfig configures the remote wiki page cache service
type PageCacheConfig struct {
	BaseURL string `yaml:"base_url"`
}

// StorageConfig configures local durable storage
type StorageConfig struct {
	Path string `yaml:"path"` // sqlite database path
}

// EditorConfig configures editing behavior
type EditorConfig struct {
	AllowManualEdit   bool `yaml:"allow_manual_edit"`
	MemoryContext     int  `yaml:"memory_context"`      // turns included in provider requests
	TokenBudget       int  `yaml:"token_budget"`        // soft cap on request payload tokens
	SupersedeOnSubmit bool `yaml:"supersede_on_submit"` // reserved; submissions block on pending revisions
}

// APIConfig configures the local HTTP surface
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	baseDir := filepath.Join(home, ".redline")

	return &Config{
		Provider: ProviderConfig{
			BaseURL:        DefaultProviderBaseURL,
			Model:          DefaultProviderModel,
			TimeoutSeconds: int(DefaultProviderTimeout / time.Second),
		},
		Storage: StorageConfig{
			Path: filepath.Join(baseDir, "redline.db"),
		},
		Editor: EditorConfig{
			AllowManualEdit: true,
			MemoryContext:   DefaultMemoryContext,
			TokenBudget:     DefaultTokenBudget,
		},
		API: APIConfig{
			Bind: DefaultAPIBind,
		},
		Logging: LoggingConfig{
			Dir:   filepath.Join(baseDir, "logs"),
			Level: "info",
		},
	}
}

// Load reads configuration from the default location with env overrides
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return LoadFromPath(filepath.Join(home, ".redline", "config.yaml"))
}

// LoadFromPath reads configuration from an explicit path with env overrides.
// A missing file yields defaults; a malformed file is an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies REDLINE_* environment variables over the loaded config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REDLINE_PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("REDLINE_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("REDLINE_PROVIDER_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("REDLINE_PAGE_CACHE_URL"); v != "" {
		cfg.PageCache.BaseURL = v
	}
	if v := os.Getenv("REDLINE_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("REDLINE_API_BIND"); v != "" {
		cfg.API.Bind = v
	}
	if v := os.Getenv("REDLINE_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("REDLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REDLINE_ALLOW_MANUAL_EDIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Editor.AllowManualEdit = b
		}
	}
	if v := os.Getenv("REDLINE_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.TokenBudget = n
		}
	}
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url must be set")
	}
	if c.Provider.TimeoutSeconds < 0 {
		return fmt.Errorf("provider.timeout_seconds must be non-negative")
	}
	if c.Editor.MemoryContext <= 0 {
		c.Editor.MemoryContext = DefaultMemoryContext
	}
	if c.Editor.TokenBudget <= 0 {
		c.Editor.TokenBudget = DefaultTokenBudget
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// ProviderTimeout returns the provider request timeout as a duration
func (c *Config) ProviderTimeout() time.Duration {
	if c.Provider.TimeoutSeconds <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}
