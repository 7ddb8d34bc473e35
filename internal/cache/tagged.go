package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// sharedProduceTimeout bounds a producer run shared by collapsed callers. It
// is detached from any single caller so one cancelled request cannot fail the
// others waiting on the same key.
const sharedProduceTimeout = 30 * time.Second

// TaggedCache remembers produced values and invalidates them by scope. Tag
// support is detected once from the backend; without it, scoped invalidation
// can only drop the fixed metadata keys.
type TaggedCache struct {
	backend Backend
	tags    TagBackend
	group   singleflight.Group
	logger  zerolog.Logger
}

func NewTaggedCache(backend Backend, logger zerolog.Logger) *TaggedCache {
	c := &TaggedCache{
		backend: backend,
		logger:  logger,
	}
	if tagged, ok := backend.(TagBackend); ok {
		c.tags = tagged
	}
	return c
}

func (c *TaggedCache) SupportsTags() bool {
	return c != nil && c.tags != nil
}

// RememberQuery returns the cached search result for key or produces and
// stores it under the articles tag.
func RememberQuery[T any](ctx context.Context, c *TaggedCache, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, error) {
	return remember(ctx, c, key, ttl, []string{TagArticles}, producer)
}

// RememberMetadata caches the full sources or categories list.
func RememberMetadata[T any](ctx context.Context, c *TaggedCache, scope Scope, ttl time.Duration, producer func(context.Context) (T, error)) (T, error) {
	switch scope {
	case ScopeSources:
		return remember(ctx, c, KeySourcesAll, ttl, []string{TagSources, TagMetadata}, producer)
	case ScopeCategories:
		return remember(ctx, c, KeyCategoriesAll, ttl, []string{TagCategories, TagMetadata}, producer)
	default:
		var zero T
		return zero, fmt.Errorf("metadata scope must be sources or categories, got %q", scope)
	}
}

func remember[T any](ctx context.Context, c *TaggedCache, key string, ttl time.Duration, tags []string, producer func(context.Context) (T, error)) (T, error) {
	if c == nil || c.backend == nil {
		return producer(ctx)
	}

	results := c.group.DoChan(key, func() (value any, err error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedProduceTimeout)
		defer cancel()
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("cache producer panic: %v", recovered)
			}
		}()

		cached, ok, err := c.backend.Get(shared, key)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed; querying storage")
		} else if ok {
			return cached, nil
		}

		produced, err := producer(shared)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(produced)
		if err != nil {
			return nil, fmt.Errorf("encode cache value: %w", err)
		}
		c.store(shared, key, payload, ttl, tags)
		return payload, nil
	})

	var result singleflight.Result
	select {
	case result = <-results:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if result.Err != nil {
		var zero T
		return zero, result.Err
	}
	encoded := result.Val

	var out T
	if err := json.Unmarshal(encoded.([]byte), &out); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache entry undecodable; querying storage")
		_ = c.backend.Forget(ctx, key)
		return producer(ctx)
	}
	return out, nil
}

func (c *TaggedCache) store(ctx context.Context, key string, payload []byte, ttl time.Duration, tags []string) {
	var err error
	if c.tags != nil {
		err = c.tags.SetTagged(ctx, key, payload, ttl, tags)
	} else {
		err = c.backend.Set(ctx, key, payload, ttl)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate drops the entries of one scope. ScopeAll flushes the backend.
func (c *TaggedCache) Invalidate(ctx context.Context, scope Scope) error {
	if c == nil || c.backend == nil {
		return nil
	}
	if scope == ScopeAll {
		return c.ClearAll(ctx)
	}

	if c.tags != nil {
		var tags []string
		switch scope {
		case ScopeArticles:
			tags = []string{TagArticles}
		case ScopeSources:
			tags = []string{TagSources}
		case ScopeCategories:
			tags = []string{TagCategories}
		case ScopeMetadata:
			tags = []string{TagSources, TagCategories, TagMetadata}
		default:
			return fmt.Errorf("unknown cache scope %q", scope)
		}
		if err := c.tags.FlushTags(ctx, tags...); err != nil {
			return fmt.Errorf("flush %s cache: %w", scope, err)
		}
		c.logger.Info().Str("scope", string(scope)).Msg("cache invalidated")
		return nil
	}

	var keys []string
	switch scope {
	case ScopeArticles:
		c.logger.Warn().
			Str("scope", string(scope)).
			Msg("cache backend has no tag support; article queries will expire by TTL")
		return nil
	case ScopeSources:
		keys = []string{KeySourcesAll}
	case ScopeCategories:
		keys = []string{KeyCategoriesAll}
	case ScopeMetadata:
		keys = []string{KeySourcesAll, KeyCategoriesAll}
	default:
		return fmt.Errorf("unknown cache scope %q", scope)
	}
	for _, key := range keys {
		if err := c.backend.Forget(ctx, key); err != nil {
			return fmt.Errorf("forget %s: %w", key, err)
		}
	}
	c.logger.Info().Str("scope", string(scope)).Msg("cache invalidated")
	return nil
}

// ClearAll flushes the whole backend whether or not it supports tags.
func (c *TaggedCache) ClearAll(ctx context.Context) error {
	if c == nil || c.backend == nil {
		return nil
	}
	if err := c.backend.Flush(ctx); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	c.logger.Info().Msg("cache cleared")
	return nil
}
