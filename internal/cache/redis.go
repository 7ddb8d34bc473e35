package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "newsdesk:"
	flushScanCount     = 500
)

// RedisBackend stores values under a key prefix and tracks tag membership in
// one Redis set per tag.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// setTaggedScript writes the value and adds it to each tag set. A tag set
// lives at least as long as its longest lived member and never expires while
// it holds a member without a TTL.
var setTaggedScript = redis.NewScript(`
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
for i = 2, #KEYS do
	local current = redis.call('PTTL', KEYS[i])
	redis.call('SADD', KEYS[i], KEYS[1])
	if current == -2 then
		if ttl > 0 then
			redis.call('PEXPIRE', KEYS[i], ttl)
		end
	elseif current >= 0 then
		if ttl <= 0 then
			redis.call('PERSIST', KEYS[i])
		elseif ttl > current then
			redis.call('PEXPIRE', KEYS[i], ttl)
		end
	end
end
return 1
`)

func (b *RedisBackend) SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	keys := make([]string, 0, len(tags)+1)
	keys = append(keys, b.key(key))
	for _, tag := range tags {
		keys = append(keys, b.tagKey(tag))
	}
	if err := setTaggedScript.Run(ctx, b.client, keys, value, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis tagged set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Forget(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// FlushTags deletes every key recorded under any of tags. Each tag set is
// read and removed in one transaction, so a key tagged concurrently lands in
// a fresh set instead of being dropped from tracking.
func (b *RedisBackend) FlushTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := b.tagKey(tag)
		var members *redis.StringSliceCmd
		_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			members = pipe.SMembers(ctx, tagKey)
			pipe.Del(ctx, tagKey)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis take tag %s: %w", tag, err)
		}

		keys := members.Val()
		for start := 0; start < len(keys); start += flushScanCount {
			end := min(start+flushScanCount, len(keys))
			if err := b.client.Del(ctx, keys[start:end]...).Err(); err != nil {
				return fmt.Errorf("redis flush tag %s: %w", tag, err)
			}
		}
	}
	return nil
}

// Flush removes every key under this backend's prefix.
func (b *RedisBackend) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", flushScanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := b.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis flush: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (b *RedisBackend) key(key string) string {
	return b.prefix + key
}

func (b *RedisBackend) tagKey(tag string) string {
	return b.prefix + "tag:" + tag
}
