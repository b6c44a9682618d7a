// Package config holds the listsearch configuration and its TOML loader.
package config

import (
	"fmt"
	"time"

	"github.com/migadu/listsearch/helpers"
)

// LoggingConfig selects where and how logs are written.
type LoggingConfig struct {
	Output string `toml:"output"` // stderr, stdout, syslog or a file path
	Format string `toml:"format"` // console or json
	Level  string `toml:"level"`  // debug, info, warn, error
}

// CacheConfig controls the on-disk archive cache.
type CacheConfig struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	Capacity      string `toml:"capacity"`
	MaxObjectSize string `toml:"max_object_size"`
}

// GetCapacity parses the cache capacity size
func (c *CacheConfig) GetCapacity() (int64, error) {
	if c.Capacity == "" {
		c.Capacity = "2gb"
	}
	return helpers.ParseSize(c.Capacity)
}

// GetMaxObjectSize parses the max object size
func (c *CacheConfig) GetMaxObjectSize() (int64, error) {
	if c.MaxObjectSize == "" {
		c.MaxObjectSize = "256mb"
	}
	return helpers.ParseSize(c.MaxObjectSize)
}

// GetPath returns the cache directory with "~" expanded.
func (c *CacheConfig) GetPath() string {
	if c.Path == "" {
		c.Path = "~/.sma_cache"
	}
	return helpers.ExpandHome(c.Path)
}

// HTTPConfig holds the settings used to talk to the archive server.
type HTTPConfig struct {
	Timeout            string `toml:"timeout"`
	UserAgent          string `toml:"user_agent"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	Concurrency        int    `toml:"concurrency"`
}

// GetTimeout parses the per-request timeout
func (c *HTTPConfig) GetTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 2 * time.Minute, nil
	}
	return helpers.ParseDuration(c.Timeout)
}

// GetConcurrency returns how many archives may be fetched ahead of the one
// being searched.
func (c *HTTPConfig) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return 1
	}
	return c.Concurrency
}

// RetryConfig configures retries of failed downloads.
type RetryConfig struct {
	InitialInterval string  `toml:"initial_interval"`
	MaxInterval     string  `toml:"max_interval"`
	Multiplier      float64 `toml:"multiplier"`
	MaxRetries      int     `toml:"max_retries"`
}

func (c *RetryConfig) GetInitialInterval() (time.Duration, error) {
	if c.InitialInterval == "" {
		return time.Second, nil
	}
	return helpers.ParseDuration(c.InitialInterval)
}

func (c *RetryConfig) GetMaxInterval() (time.Duration, error) {
	if c.MaxInterval == "" {
		return 30 * time.Second, nil
	}
	return helpers.ParseDuration(c.MaxInterval)
}

// SearchConfig holds defaults for how messages are matched.
type SearchConfig struct {
	Threaded bool `toml:"threaded"`
	// HTMLToText searches text/html bodies as rendered text.
	HTMLToText bool `toml:"html_to_text"`
	// OldestFirst searches archives in reverse index order. Mailman lists
	// the newest archive first.
	OldestFirst bool `toml:"oldest_first"`
}

// OutputConfig selects what happens to matching messages.
type OutputConfig struct {
	Print bool   `toml:"print"`
	Mbox  string `toml:"mbox"`
	Exec  string `toml:"exec"`
}

// MetricsConfig enables the Prometheus endpoint while a search runs.
type MetricsConfig struct {
	Addr string `toml:"addr"`
	Path string `toml:"path"`
}

// Config is the complete listsearch configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Cache   CacheConfig   `toml:"cache"`
	HTTP    HTTPConfig    `toml:"http"`
	Retry   RetryConfig   `toml:"retry"`
	Search  SearchConfig  `toml:"search"`
	Output  OutputConfig  `toml:"output"`
	Metrics MetricsConfig `toml:"metrics"`
}

// NewDefaultConfig returns the configuration used when no file is present.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "warn",
		},
		Cache: CacheConfig{
			Enabled:       true,
			Path:          "~/.sma_cache",
			Capacity:      "2gb",
			MaxObjectSize: "256mb",
		},
		HTTP: HTTPConfig{
			Timeout:     "2m",
			UserAgent:   "listsearch/1.0",
			Concurrency: 2,
		},
		Retry: RetryConfig{
			InitialInterval: "1s",
			MaxInterval:     "30s",
			Multiplier:      2.0,
			MaxRetries:      3,
		},
		Output: OutputConfig{
			Print: true,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Validate checks values that can only be verified after loading.
func (c *Config) Validate() error {
	if _, err := c.Cache.GetCapacity(); err != nil {
		return fmt.Errorf("cache.capacity: %w", err)
	}
	if _, err := c.Cache.GetMaxObjectSize(); err != nil {
		return fmt.Errorf("cache.max_object_size: %w", err)
	}
	if _, err := c.HTTP.GetTimeout(); err != nil {
		return fmt.Errorf("http.timeout: %w", err)
	}
	if _, err := c.Retry.GetInitialInterval(); err != nil {
		return fmt.Errorf("retry.initial_interval: %w", err)
	}
	if _, err := c.Retry.GetMaxInterval(); err != nil {
		return fmt.Errorf("retry.max_interval: %w", err)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %v", c.Retry.Multiplier)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
