package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListingKeyPrefix namespaces every cached listing page. Mutating workflow
// operations invalidate this whole prefix.
const ListingKeyPrefix = "tournaments:"

// invalidateBatchSize bounds a single SCAN/DEL round trip so invalidation
// never blocks a shared cache with one huge delete.
const invalidateBatchSize = 100

// ListingKey derives the cache key for one page of the tournament listing.
func ListingKey(page, limit int) string {
	return fmt.Sprintf("%spage=%d:limit=%d", ListingKeyPrefix, page, limit)
}

// ListingCache fronts the paginated tournament listing. Every method is
// best-effort: backend errors are logged and treated as a miss, never
// surfaced to the workflow.
type ListingCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{})
	InvalidatePrefix(ctx context.Context, prefix string)
}

// RedisListingCache is the production ListingCache backed by Redis.
type RedisListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisListingCache(client *redis.Client, ttl time.Duration) *RedisListingCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisListingCache{client: client, ttl: ttl}
}

func (c *RedisListingCache) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("⚠️ [CACHE] get %s failed: %v", key, err)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("⚠️ [CACHE] corrupt entry at %s: %v", key, err)
		return false
	}
	return true
}

func (c *RedisListingCache) Set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("⚠️ [CACHE] marshal for %s failed: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("⚠️ [CACHE] set %s failed: %v", key, err)
	}
}

// InvalidatePrefix removes every key under prefix in bounded batches using
// SCAN. If SCAN itself fails it falls back to a full KEYS listing, accepting
// the operational cost over leaving stale pages behind.
func (c *RedisListingCache) InvalidatePrefix(ctx context.Context, prefix string) {
	match := prefix + "*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, invalidateBatchSize).Result()
		if err != nil {
			log.Printf("⚠️ [CACHE] scan %s failed (%v), falling back to KEYS", match, err)
			c.invalidateByKeys(ctx, match)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				log.Printf("⚠️ [CACHE] delete batch under %s failed: %v", prefix, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (c *RedisListingCache) invalidateByKeys(ctx context.Context, match string) {
	keys, err := c.client.Keys(ctx, match).Result()
	if err != nil {
		log.Printf("⚠️ [CACHE] KEYS %s failed: %v", match, err)
		return
	}
	for start := 0; start < len(keys); start += invalidateBatchSize {
		end := start + invalidateBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			log.Printf("⚠️ [CACHE] delete batch %s failed: %v", match, err)
		}
	}
}
