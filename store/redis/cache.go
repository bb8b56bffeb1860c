package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/herald/dedup"
)

// compile-time interface check
var _ dedup.Cache = (*Cache)(nil)

// Cache implements dedup.Cache on Redis so every Herald instance shares one
// replay guard. Reserve is a single SET NX with expiry.
type Cache struct {
	rdb goredis.UniversalClient
}

// DedupCache returns a dedup cache sharing this store's connection.
func (s *Store) DedupCache() dedup.Cache {
	return &Cache{rdb: s.rdb}
}

// Reserve implements dedup.Cache.
func (c *Cache) Reserve(ctx context.Context, key string, rec dedup.Record, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("herald/redis: marshal dedup record: %w", err)
	}
	ok, err := c.rdb.SetNX(ctx, prefixDedup+key, raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("herald/redis: reserve: %w", err)
	}
	return ok, nil
}

// Mark implements dedup.Cache. A key that already expired stays absent.
func (c *Cache) Mark(ctx context.Context, key string, rec dedup.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("herald/redis: marshal dedup record: %w", err)
	}
	if err := c.rdb.SetXX(ctx, prefixDedup+key, raw, goredis.KeepTTL).Err(); err != nil && !isRedisNil(err) {
		return fmt.Errorf("herald/redis: mark: %w", err)
	}
	return nil
}

// Release implements dedup.Cache.
func (c *Cache) Release(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, prefixDedup+key).Err(); err != nil {
		return fmt.Errorf("herald/redis: release: %w", err)
	}
	return nil
}

// Sweep implements dedup.Cache. Redis expires keys natively.
func (c *Cache) Sweep(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// Len implements dedup.Cache by scanning the dedup key space.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefixDedup+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("herald/redis: dedup len: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// Get returns the record under key, if present.
func (c *Cache) Get(ctx context.Context, key string) (dedup.Record, bool, error) {
	raw, err := c.rdb.Get(ctx, prefixDedup+key).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return dedup.Record{}, false, nil
		}
		return dedup.Record{}, false, fmt.Errorf("herald/redis: dedup get: %w", err)
	}
	var rec dedup.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return dedup.Record{}, false, fmt.Errorf("herald/redis: decode dedup record: %w", err)
	}
	return rec, true, nil
}
