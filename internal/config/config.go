package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"ND_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"ND_DB_MAX_CONNS" default:"8"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	CacheDriver      string        `envconfig:"CACHE_DRIVER" default:"memory"`
	RedisURL         string        `envconfig:"REDIS_URL" default:""`
	CacheMemorySize  int           `envconfig:"CACHE_MEMORY_SIZE" default:"4096"`
	CacheQueryTTL    time.Duration `envconfig:"CACHE_QUERY_TTL" default:"30m"`
	CacheMetadataTTL time.Duration `envconfig:"CACHE_METADATA_TTL" default:"1h"`

	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	FetchConcurrency int           `envconfig:"FETCH_CONCURRENCY" default:"4"`
	FetchSchedule    string        `envconfig:"FETCH_SCHEDULE" default:"@every 1h"`

	GuardianAPIKey  string `envconfig:"GUARDIAN_API_KEY" default:""`
	GuardianBaseURL string `envconfig:"GUARDIAN_BASE_URL" default:"https://content.guardianapis.com/search"`

	NewsAPIKey     string `envconfig:"NEWSAPI_KEY" default:""`
	NewsAPIBaseURL string `envconfig:"NEWSAPI_BASE_URL" default:"https://newsapi.org/v2/top-headlines"`
	NewsAPISources string `envconfig:"NEWSAPI_SOURCES" default:"techcrunch,the-verge,the-wall-street-journal"`

	NYTimesAPIKey  string `envconfig:"NYTIMES_API_KEY" default:""`
	NYTimesBaseURL string `envconfig:"NYTIMES_BASE_URL" default:"https://api.nytimes.com/svc/topstories/v2"`
	NYTimesSection string `envconfig:"NYTIMES_SECTION" default:"arts"`

	RSSFeeds string `envconfig:"RSS_FEEDS" default:""`
}

// Feed is one configured RSS or Atom source.
type Feed struct {
	Slug string
	URL  string
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("ND_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("ND_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("ND_DB_MIN_CONNS (%d) cannot exceed ND_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	switch c.CacheDriverName() {
	case CacheDriverMemory:
		if c.CacheMemorySize < 1 {
			return fmt.Errorf("CACHE_MEMORY_SIZE must be >= 1")
		}
	case CacheDriverRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_DRIVER=redis")
		}
	default:
		return fmt.Errorf("CACHE_DRIVER must be one of memory, redis (got %q)", c.CacheDriver)
	}
	if c.CacheQueryTTL <= 0 {
		return fmt.Errorf("CACHE_QUERY_TTL must be positive")
	}
	if c.CacheMetadataTTL <= 0 {
		return fmt.Errorf("CACHE_METADATA_TTL must be positive")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if _, err := c.Feeds(); err != nil {
		return err
	}
	return nil
}

func (c *Config) CacheDriverName() string {
	return strings.ToLower(strings.TrimSpace(c.CacheDriver))
}

// NewsAPISourceList returns the configured NewsAPI source ids, deduplicated.
func (c *Config) NewsAPISourceList() []string {
	if c == nil {
		return nil
	}
	return splitUnique(c.NewsAPISources)
}

// Feeds parses RSS_FEEDS, a comma separated list of slug=url pairs.
func (c *Config) Feeds() ([]Feed, error) {
	if c == nil {
		return nil, nil
	}

	entries := splitUnique(c.RSSFeeds)
	feeds := make([]Feed, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		slug, rawURL, ok := strings.Cut(entry, "=")
		slug = strings.TrimSpace(slug)
		rawURL = strings.TrimSpace(rawURL)
		if !ok || slug == "" || rawURL == "" {
			return nil, fmt.Errorf("RSS_FEEDS entry %q must look like slug=url", entry)
		}
		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, fmt.Errorf("RSS_FEEDS entry %q has an invalid url", entry)
		}
		if _, exists := seen[slug]; exists {
			return nil, fmt.Errorf("RSS_FEEDS slug %q is listed more than once", slug)
		}
		seen[slug] = struct{}{}
		feeds = append(feeds, Feed{Slug: slug, URL: rawURL})
	}
	return feeds, nil
}

func splitUnique(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
