// Package cache layers tag scoped remember and invalidate on top of a plain
// key value backend.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend is a key value store with per key TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Forget(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}

// TagBackend can group keys under tags and drop a whole group at once.
type TagBackend interface {
	Backend
	SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	FlushTags(ctx context.Context, tags ...string) error
}

type Scope string

const (
	ScopeArticles   Scope = "articles"
	ScopeSources    Scope = "sources"
	ScopeCategories Scope = "categories"
	ScopeMetadata   Scope = "metadata"
	ScopeAll        Scope = "all"
)

const (
	TagArticles   = "articles"
	TagSources    = "sources"
	TagCategories = "categories"
	TagMetadata   = "metadata"

	KeySourcesAll    = "sources:all"
	KeyCategoriesAll = "categories:all"
)

func ParseScope(raw string) (Scope, error) {
	scope := Scope(strings.ToLower(strings.TrimSpace(raw)))
	switch scope {
	case ScopeArticles, ScopeSources, ScopeCategories, ScopeMetadata, ScopeAll:
		return scope, nil
	case "":
		return ScopeAll, nil
	default:
		return "", fmt.Errorf("unknown cache scope %q (expected articles, sources, categories, metadata or all)", raw)
	}
}
