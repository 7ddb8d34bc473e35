package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Environment:      "local",
		LogLevel:         "info",
		DatabaseURL:      "postgres://localhost/newsdesk",
		DBMinConns:       1,
		DBMaxConns:       8,
		CacheDriver:      CacheDriverMemory,
		CacheMemorySize:  16,
		CacheQueryTTL:    30 * time.Minute,
		CacheMetadataTTL: time.Hour,
		FetchTimeout:     30 * time.Second,
		FetchConcurrency: 4,
		FetchSchedule:    "@every 1h",
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = " " }, wantErr: "DATABASE_URL"},
		{name: "min above max", mutate: func(c *Config) { c.DBMinConns = 9 }, wantErr: "cannot exceed"},
		{name: "unknown driver", mutate: func(c *Config) { c.CacheDriver = "memcached" }, wantErr: "CACHE_DRIVER"},
		{name: "redis without url", mutate: func(c *Config) { c.CacheDriver = "redis" }, wantErr: "REDIS_URL"},
		{name: "zero concurrency", mutate: func(c *Config) { c.FetchConcurrency = 0 }, wantErr: "FETCH_CONCURRENCY"},
		{name: "zero timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }, wantErr: "FETCH_TIMEOUT"},
		{name: "bad feed", mutate: func(c *Config) { c.RSSFeeds = "broken" }, wantErr: "RSS_FEEDS"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestFeeds_ParsesPairs(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RSSFeeds = "bbc=https://feeds.bbci.co.uk/news/rss.xml, hn = https://news.ycombinator.com/rss ,"

	feeds, err := cfg.Feeds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(feeds))
	}
	if feeds[1].Slug != "hn" || feeds[1].URL != "https://news.ycombinator.com/rss" {
		t.Fatalf("unexpected feed: %+v", feeds[1])
	}
}

func TestFeeds_RejectsDuplicateSlug(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RSSFeeds = "a=https://a.test/rss,a=https://b.test/rss"
	if _, err := cfg.Feeds(); err == nil {
		t.Fatalf("expected duplicate slug error")
	}
}

func TestNewsAPISourceList(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.NewsAPISources = "techcrunch, the-verge,techcrunch"
	got := cfg.NewsAPISourceList()
	if strings.Join(got, ",") != "techcrunch,the-verge" {
		t.Fatalf("unexpected sources: %v", got)
	}
}
