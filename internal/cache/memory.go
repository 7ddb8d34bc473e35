package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"horse.fit/newsdesk/internal/globaltime"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a bounded in-process LRU. It has no tag support, so
// per-query entries can only age out.
type MemoryBackend struct {
	lru *expirable.LRU[string, memoryEntry]
}

// NewMemoryBackend keeps at most size entries. maxTTL caps how long any
// entry survives regardless of the TTL it was stored with.
func NewMemoryBackend(size int, maxTTL time.Duration) *MemoryBackend {
	if size <= 0 {
		size = 4096
	}
	return &MemoryBackend{lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := b.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !globaltime.Now().Before(entry.expiresAt) {
		b.lru.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = globaltime.Now().Add(ttl)
	}
	b.lru.Add(key, entry)
	return nil
}

func (b *MemoryBackend) Forget(_ context.Context, key string) error {
	b.lru.Remove(key)
	return nil
}

func (b *MemoryBackend) Flush(_ context.Context) error {
	b.lru.Purge()
	return nil
}

func (b *MemoryBackend) Len() int {
	return b.lru.Len()
}
