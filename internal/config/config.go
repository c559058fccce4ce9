// Package config loads harvester settings from an optional TOML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/redis/go-redis/v9"
)

// Inspire contains the search endpoint and paging settings.
type Inspire struct {
	BaseURL          string `toml:"base_url"`
	UserAgent        string `toml:"user_agent"`
	PageSize         int    `toml:"page_size"`
	RequestDelayMS   int    `toml:"request_delay_ms"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxAttempts      int    `toml:"max_attempts"`
	InitialBackoffMS int    `toml:"initial_backoff_ms"`
	MaxPages         int    `toml:"max_pages"`
}

// Output contains the destination file settings.
type Output struct {
	Path              string `toml:"path"`
	ExcludeIncomplete bool   `toml:"exclude_incomplete"`
}

// Redis contains the optional response cache settings.
// An empty Addr disables the cache. Addr is either host:port or a
// redis:// URL, whose credentials and database fill the other fields.
// Purge drops all cached pages before the harvest starts.
type Redis struct {
	Addr            string `toml:"addr"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
	Purge           bool   `toml:"purge"`
}

// Logging contains logger settings.
type Logging struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Metrics contains the Prometheus endpoint settings.
// An empty Addr disables the endpoint.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Config is the full harvester configuration.
type Config struct {
	Inspire Inspire `toml:"inspire"`
	Output  Output  `toml:"output"`
	Redis   Redis   `toml:"redis"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
}

// Environment variables that override file values.
const (
	EnvConfigPath   = "INSPIRE_NAMES_CONFIG"
	EnvBaseURL      = "INSPIRE_BASE_URL"
	EnvUserAgent    = "INSPIRE_USER_AGENT"
	EnvPageSize     = "INSPIRE_PAGE_SIZE"
	EnvRequestDelay = "INSPIRE_REQUEST_DELAY_MS"
	EnvMaxPages     = "INSPIRE_MAX_PAGES"
	EnvOutput       = "INSPIRE_OUTPUT"
	EnvRedisURL     = "REDIS_URL"
	EnvCachePurge   = "INSPIRE_CACHE_PURGE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogPretty    = "LOG_PRETTY"
	EnvMetricsAddr  = "METRICS_ADDR"
)

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str(EnvBaseURL, &c.Inspire.BaseURL)
	str(EnvUserAgent, &c.Inspire.UserAgent)
	str(EnvOutput, &c.Output.Path)
	str(EnvRedisURL, &c.Redis.Addr)
	str(EnvLogLevel, &c.Logging.Level)
	str(EnvMetricsAddr, &c.Metrics.Addr)

	if err := num(EnvPageSize, &c.Inspire.PageSize); err != nil {
		return err
	}
	if err := num(EnvRequestDelay, &c.Inspire.RequestDelayMS); err != nil {
		return err
	}
	if err := num(EnvMaxPages, &c.Inspire.MaxPages); err != nil {
		return err
	}

	if err := flag(EnvLogPretty, &c.Logging.Pretty); err != nil {
		return err
	}
	if err := flag(EnvCachePurge, &c.Redis.Purge); err != nil {
		return err
	}

	return nil
}

func (c *Config) normalize() error {
	c.Inspire.BaseURL = strings.TrimRight(strings.TrimSpace(c.Inspire.BaseURL), "/")
	c.Inspire.UserAgent = strings.TrimSpace(c.Inspire.UserAgent)
	c.Output.Path = strings.TrimSpace(c.Output.Path)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)

	if !strings.Contains(c.Redis.Addr, "://") {
		return nil
	}

	opts, err := redis.ParseURL(c.Redis.Addr)
	if err != nil {
		return fmt.Errorf("redis address: %w", err)
	}
	c.Redis.Addr = opts.Addr
	if opts.Username != "" {
		c.Redis.Username = opts.Username
	}
	if opts.Password != "" {
		c.Redis.Password = opts.Password
	}
	if opts.DB != 0 {
		c.Redis.DB = opts.DB
	}
	return nil
}

// Validate checks the configuration for values the harvester cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Inspire.BaseURL == "" {
		errs = append(errs, errors.New("inspire.base_url is required"))
	} else if u, err := url.Parse(c.Inspire.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("inspire.base_url %q is not an absolute URL", c.Inspire.BaseURL))
	}
	if c.Inspire.UserAgent == "" {
		errs = append(errs, errors.New("inspire.user_agent is required"))
	}
	if c.Inspire.PageSize < 1 {
		errs = append(errs, fmt.Errorf("inspire.page_size must be >= 1 (got %d)", c.Inspire.PageSize))
	}
	if c.Inspire.RequestDelayMS < 0 {
		errs = append(errs, fmt.Errorf("inspire.request_delay_ms must be >= 0 (got %d)", c.Inspire.RequestDelayMS))
	}
	if c.Inspire.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("inspire.timeout_seconds must be >= 1 (got %d)", c.Inspire.TimeoutSeconds))
	}
	if c.Inspire.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("inspire.max_attempts must be >= 1 (got %d)", c.Inspire.MaxAttempts))
	}
	if c.Inspire.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("inspire.max_pages must be >= 0 (got %d)", c.Inspire.MaxPages))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// RequestDelay returns the pause between two page requests.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Inspire.RequestDelayMS) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Inspire.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry backoff.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.Inspire.InitialBackoffMS) * time.Millisecond
}

// CacheTTL returns the TTL for cached pages without an Expires header.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}
