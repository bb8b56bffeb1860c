// Package redis implements herald's store on Redis through Grove KV. Records
// are JSON documents, secondary lookups are plain keys claimed with SET NX,
// and time-ordered listings are sorted sets scored by unix time. The package
// also provides Cache, a dedup.Cache shared by every Herald instance.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	heraldstore "github.com/xraph/herald/store"
)

// compile-time interface check
var _ heraldstore.Store = (*Store)(nil)

// Store implements store.Store on Redis.
type Store struct {
	kv  *kv.Store
	rdb goredis.UniversalClient
}

// New creates a Redis store on a Grove KV store opened with redisdriver.
func New(store *kv.Store) *Store {
	return &Store{
		kv:  store,
		rdb: redisdriver.UnwrapClient(store),
	}
}

// Migrate is a no-op: every index is maintained on write.
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.kv.Ping(ctx); err != nil {
		return fmt.Errorf("herald/redis: ping: %w", err)
	}
	return nil
}

// Close closes the KV store.
func (s *Store) Close() error {
	return s.kv.Close()
}

func now() time.Time {
	return time.Now().UTC()
}

// scoreFromTime scores a sorted set member by unix seconds.
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func scoreBound(t *time.Time, open string) string {
	if t == nil {
		return open
	}
	return strconv.FormatFloat(scoreFromTime(*t), 'f', -1, 64)
}

func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound)
}

func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

func (s *Store) getJSON(ctx context.Context, key string, dest any) error {
	raw, err := s.kv.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *Store) setJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("herald/redis: marshal %s: %w", key, err)
	}
	return s.kv.SetRaw(ctx, key, raw)
}

// window returns the members of a time-scored set between from and to,
// inclusive. A nil bound is open. newestFirst reverses the order.
func (s *Store) window(ctx context.Context, key string, from, to *time.Time, newestFirst bool) ([]string, error) {
	by := &goredis.ZRangeBy{
		Min: scoreBound(from, "-inf"),
		Max: scoreBound(to, "+inf"),
	}
	if newestFirst {
		return s.rdb.ZRevRangeByScore(ctx, key, by).Result()
	}
	return s.rdb.ZRangeByScore(ctx, key, by).Result()
}

// paginate applies offset and limit to an already ordered page.
func paginate[T any](items []*T, offset, limit int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
