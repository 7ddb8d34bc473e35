package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/category"
	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/config"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/fetch"
	"horse.fit/newsdesk/internal/ingest"
	"horse.fit/newsdesk/internal/logging"
	"horse.fit/newsdesk/internal/provider"
	"horse.fit/newsdesk/internal/query"
)

// components holds the process-wide services shared by the commands.
type components struct {
	cfg          *config.Config
	logger       zerolog.Logger
	pool         *db.Pool
	cache        *cache.TaggedCache
	closeCache   func()
	resolver     *category.Resolver
	orchestrator *fetch.Orchestrator
	queries      *query.Service
}

func loadConfig(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// newRuntime connects storage and the cache and assembles the fetch and
// query paths around them.
func newComponents(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*components, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	tagged, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	resolver := category.NewResolver(pool, logging.Component(logger, "category_resolver"))
	store := ingest.NewBatchStore(pool, ingest.DefaultBatchSize, logging.Component(logger, "batch_store"))
	pipeline := ingest.NewPipeline(store, resolver, logging.Component(logger, "ingest_pipeline"))

	client := provider.NewHTTPClient(cfg.FetchTimeout)
	orchestrator := fetch.NewOrchestrator(pipeline, fetch.Options{
		Concurrency: cfg.FetchConcurrency,
		Adapters: func(ctx context.Context) (map[string]provider.Adapter, error) {
			return resolveAdapters(ctx, cfg, pool, client)
		},
		Runs:       pool,
		Cache:      tagged,
		Categories: resolver,
	}, logging.Component(logger, "fetch"))

	queries := query.NewService(pool, tagged, cfg.CacheQueryTTL, cfg.CacheMetadataTTL, logging.Component(logger, "query"))

	return &components{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		cache:        tagged,
		closeCache:   closeCache,
		resolver:     resolver,
		orchestrator: orchestrator,
		queries:      queries,
	}, nil
}

func (c *components) Close() {
	if c == nil {
		return
	}
	if c.closeCache != nil {
		c.closeCache()
	}
	_ = c.pool.Close()
}

func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*cache.TaggedCache, func(), error) {
	cacheLogger := logging.Component(logger, "cache").With().Str("driver", cfg.CacheDriverName()).Logger()

	switch cfg.CacheDriverName() {
	case config.CacheDriverRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closeFn := func() { _ = client.Close() }
		return cache.NewTaggedCache(cache.NewRedisBackend(client, ""), cacheLogger), closeFn, nil
	default:
		ttl := max(cfg.CacheQueryTTL, cfg.CacheMetadataTTL)
		return cache.NewTaggedCache(cache.NewMemoryBackend(cfg.CacheMemorySize, ttl), cacheLogger), func() {}, nil
	}
}

// resolveAdapters seeds the configured sources and builds their adapters.
func resolveAdapters(ctx context.Context, cfg *config.Config, pool *db.Pool, client provider.HTTPClient) (map[string]provider.Adapter, error) {
	defs, err := provider.Definitions(cfg, client)
	if err != nil {
		return nil, err
	}
	stored, err := pool.UpsertSources(ctx, provider.SourceSeeds(defs))
	if err != nil {
		return nil, fmt.Errorf("seed sources: %w", err)
	}
	return provider.Build(defs, stored)
}
