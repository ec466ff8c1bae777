// Package config loads the edge gateway configuration from an optional YAML
// file, expanding ${VAR} references, and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Sternrassler/kg-edge-gateway/pkg/cache"
	"github.com/Sternrassler/kg-edge-gateway/pkg/logging"
	"github.com/Sternrassler/kg-edge-gateway/pkg/policy"
	"github.com/redis/go-redis/v9"
	"go.yaml.in/yaml/v3"
)

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Admin  AdminConfig  `yaml:"admin"`
	Origin OriginConfig `yaml:"origin"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`

	// Rules replaces the built-in classification table when non-empty.
	Rules []RuleEntry `yaml:"rules"`
}

// ServerConfig holds the gateway listener settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"` // also bounds draining pending cache writes
}

// AdminConfig holds the health and metrics listener settings.
type AdminConfig struct {
	Addr string `yaml:"addr"` // empty disables the admin listener
}

// OriginConfig holds the knowledge-graph API origin settings.
type OriginConfig struct {
	BaseURL            string        `yaml:"base_url"`
	DNSCache           bool          `yaml:"dns_cache"`
	DNSRefreshInterval time.Duration `yaml:"dns_refresh_interval"`
}

// CacheConfig holds the cache store settings.
type CacheConfig struct {
	Backend   string       `yaml:"backend"` // "redis" or "memory"
	KeyPrefix string       `yaml:"key_prefix"`
	Redis     RedisConfig  `yaml:"redis"`
	Memory    MemoryConfig `yaml:"memory"`
}

// RedisConfig configures the shared Redis store.
type RedisConfig struct {
	// URL is either redis://[user:pass@]host:port/db or a bare host:port.
	URL            string        `yaml:"url"`
	LocalCacheSize int           `yaml:"local_cache_size"` // 0 disables the in-process layer
	LocalCacheTTL  time.Duration `yaml:"local_cache_ttl"`
}

// MemoryConfig configures the in-process store.
type MemoryConfig struct {
	MaxSize int           `yaml:"max_size"`
	MaxTTL  time.Duration `yaml:"max_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RuleEntry is a classification rule in the config file.
type RuleEntry struct {
	Name      string        `yaml:"name"`
	Match     string        `yaml:"match"` // "exact" or "prefix"
	Paths     []string      `yaml:"paths"`
	Cacheable bool          `yaml:"cacheable"`
	TTL       time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Admin: AdminConfig{
			Addr: ":9090",
		},
		Origin: OriginConfig{
			BaseURL:            "http://localhost:8000",
			DNSCache:           true,
			DNSRefreshInterval: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:   BackendRedis,
			KeyPrefix: cache.DefaultKeyPrefix,
			Redis: RedisConfig{
				URL:           "localhost:6379",
				LocalCacheTTL: time.Minute,
			},
			Memory: MemoryConfig{
				MaxSize: 10_000,
				MaxTTL:  policy.LongTTL,
			},
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
// Unset variables are left as they are.
func expandEnv(data []byte, lookup func(string) (string, bool)) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		if val, ok := lookup(string(match[2 : len(match)-1])); ok {
			return []byte(val)
		}
		return match
	})
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(expandEnv(data, lookup), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv applies the deployment environment overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + v
	}
	if v, ok := lookup("ADMIN_PORT"); ok && v != "" {
		c.Admin.Addr = ":" + v
	}
	if v, ok := lookup("ORIGIN_URL"); ok && v != "" {
		c.Origin.BaseURL = v
	}
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		c.Cache.Redis.URL = v
	}
	if v, ok := lookup("CACHE_BACKEND"); ok && v != "" {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration for values the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Origin.BaseURL == "" {
		return fmt.Errorf("origin.base_url is required")
	}
	if c.Origin.DNSCache && c.Origin.DNSRefreshInterval <= 0 {
		return fmt.Errorf("origin.dns_refresh_interval must be > 0 when dns_cache is enabled (got %v)", c.Origin.DNSRefreshInterval)
	}

	switch c.Cache.Backend {
	case BackendRedis:
		if c.Cache.Redis.URL == "" {
			return fmt.Errorf("cache.redis.url is required for the redis backend")
		}
		if _, err := c.Cache.Redis.Options(); err != nil {
			return err
		}
	case BackendMemory:
		if c.Cache.Memory.MaxSize <= 0 {
			return fmt.Errorf("cache.memory.max_size must be > 0 (got %d)", c.Cache.Memory.MaxSize)
		}
		if c.Cache.Memory.MaxTTL <= 0 {
			return fmt.Errorf("cache.memory.max_ttl must be > 0 (got %v)", c.Cache.Memory.MaxTTL)
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q (got %q)", BackendRedis, BackendMemory, c.Cache.Backend)
	}

	if _, err := c.Table(); err != nil {
		return err
	}
	return nil
}

// Options returns go-redis options for the configured URL.
func (r RedisConfig) Options() (*redis.Options, error) {
	if strings.Contains(r.URL, "://") {
		opts, err := redis.ParseURL(r.URL)
		if err != nil {
			return nil, fmt.Errorf("parse cache.redis.url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: r.URL}, nil
}

// Table builds the classification table: the configured rules, or the
// built-in table when none are configured.
func (c *Config) Table() (*policy.Table, error) {
	if len(c.Rules) == 0 {
		return policy.DefaultTable(), nil
	}

	rules := make([]policy.Rule, 0, len(c.Rules))
	for _, e := range c.Rules {
		rules = append(rules, policy.Rule{
			Name:      e.Name,
			Match:     policy.MatchKind(e.Match),
			Paths:     e.Paths,
			Cacheable: e.Cacheable,
			TTL:       e.TTL,
		})
	}

	table, err := policy.NewTable(rules)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return table, nil
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
