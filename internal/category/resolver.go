// Package category maps free text category labels to stable category ids.
package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/slug"
)

// sharedResolveTimeout bounds a lookup shared by concurrent callers of one
// slug, independent of whichever caller started it.
const sharedResolveTimeout = 10 * time.Second

type Store interface {
	FindCategoryBySlug(ctx context.Context, slug string) (*db.Category, error)
	CreateCategory(ctx context.Context, name, slug string) (*db.Category, error)
}

// Resolver memoizes slug to id for the lifetime of the process. Concurrent
// misses on one slug share a single lookup and create; a unique index
// collision from another process is recovered by re-reading the row.
type Resolver struct {
	store  Store
	logger zerolog.Logger

	mu      sync.RWMutex
	memo    map[string]int64
	group   singleflight.Group
	created atomic.Int64
}

func NewResolver(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
		memo:   make(map[string]int64),
	}
}

// Resolve returns nil for an empty label or when the category cannot be
// found or created. It never fails ingestion.
func (r *Resolver) Resolve(ctx context.Context, label string) *int64 {
	name := strings.TrimSpace(label)
	if name == "" {
		return nil
	}
	key := slug.Make(name)
	if key == "" {
		return nil
	}

	if id, ok := r.cached(key); ok {
		return &id
	}

	results := r.group.DoChan(key, func() (value any, err error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedResolveTimeout)
		defer cancel()
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("category resolution panic: %v", recovered)
			}
		}()

		if id, ok := r.cached(key); ok {
			return id, nil
		}
		id, err := r.findOrCreate(shared, name, key)
		if err != nil {
			return nil, err
		}
		r.remember(key, id)
		return id, nil
	})

	var result singleflight.Result
	select {
	case result = <-results:
	case <-ctx.Done():
		r.logger.Warn().
			Err(ctx.Err()).
			Str("label", name).
			Str("slug", key).
			Msg("category resolution abandoned")
		return nil
	}
	if result.Err != nil {
		r.logger.Warn().
			Err(result.Err).
			Str("label", name).
			Str("slug", key).
			Msg("category resolution failed")
		return nil
	}

	id := result.Val.(int64)
	return &id
}

// Created reports how many categories this resolver has inserted.
func (r *Resolver) Created() int64 {
	return r.created.Load()
}

func (r *Resolver) findOrCreate(ctx context.Context, name, key string) (int64, error) {
	if r.store == nil {
		return 0, fmt.Errorf("category store is not configured")
	}

	existing, err := r.store.FindCategoryBySlug(ctx, key)
	if err == nil {
		return existing.CategoryID, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return 0, fmt.Errorf("find category: %w", err)
	}

	created, err := r.store.CreateCategory(ctx, name, key)
	if err == nil {
		r.created.Add(1)
		r.logger.Debug().Str("slug", key).Int64("category_id", created.CategoryID).Msg("category created")
		return created.CategoryID, nil
	}
	if !errors.Is(err, db.ErrDuplicate) {
		return 0, fmt.Errorf("create category: %w", err)
	}

	winner, err := r.store.FindCategoryBySlug(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("re-read category after duplicate: %w", err)
	}
	return winner.CategoryID, nil
}

func (r *Resolver) cached(key string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.memo[key]
	return id, ok
}

func (r *Resolver) remember(key string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.memo[key]; !exists {
		r.memo[key] = id
	}
}
