// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/candles/usecase"
)

// CachingCandleRepository decorates a CandleRepository with Redis caching of
// LastN and Range reads. Every write invalidates the symbol's cached reads.
//
// A read that loaded from the inner store while a write was invalidating does
// not populate the cache: each invalidation bumps a per-symbol generation, and
// the loaded rows are stored only if the generation seen before loading is
// still current. This holds for writers within the same process.
type CachingCandleRepository struct {
	inner     usecase.CandleRepository
	rdb       *redis.Client
	period    time.Duration
	namespace string
	now       func() time.Time

	mu  sync.Mutex
	gen map[string]uint64 // keyed by cache key prefix
}

var _ usecase.CandleRepository = (*CachingCandleRepository)(nil)

// NewCachingCandleRepository decorates a CandleRepository with Redis caching.
// Entries expire at the next period boundary, when a new candle opens.
// If period is 0 it defaults to 5 minutes. If namespace is empty, it uses "candles".
// A nil rdb makes the decorator a pass-through.
func NewCachingCandleRepository(rdb *redis.Client, period time.Duration, inner usecase.CandleRepository, namespace string) *CachingCandleRepository {
	if period <= 0 {
		period = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "candles"
	}
	return &CachingCandleRepository{
		inner:     inner,
		rdb:       rdb,
		period:    period,
		namespace: namespace,
		now:       time.Now,
		gen:       make(map[string]uint64),
	}
}

// Upsert writes through and invalidates the symbol's cache entries.
func (c *CachingCandleRepository) Upsert(ctx context.Context, cd entity.Candle) error {
	if err := c.inner.Upsert(ctx, cd); err != nil {
		return err
	}
	c.invalidate(ctx, []entity.Candle{cd})
	return nil
}

// UpsertBatch inserts or updates candles and invalidates related cache entries.
func (c *CachingCandleRepository) UpsertBatch(ctx context.Context, candles []entity.Candle) error {
	if err := c.inner.UpsertBatch(ctx, candles); err != nil {
		return err
	}
	c.invalidate(ctx, candles)
	return nil
}

// MostRecent is not cached; the live path needs the current row.
func (c *CachingCandleRepository) MostRecent(ctx context.Context, symbol string) (entity.Candle, error) {
	return c.inner.MostRecent(ctx, symbol)
}

// LastN retrieves candles, checking cache first then falling back to the database.
func (c *CachingCandleRepository) LastN(ctx context.Context, symbol string, n int) ([]entity.Candle, error) {
	prefix := c.cacheKeyPrefix(symbol)
	key := fmt.Sprintf("%slast:%d", prefix, n)
	return c.readThrough(ctx, prefix, key, func() ([]entity.Candle, error) {
		return c.inner.LastN(ctx, symbol, n)
	})
}

// Range retrieves candles, checking cache first then falling back to the database.
func (c *CachingCandleRepository) Range(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Candle, error) {
	prefix := c.cacheKeyPrefix(symbol)
	key := fmt.Sprintf("%srange:%d:%d:%d", prefix, start.UnixMilli(), end.UnixMilli(), limit)
	return c.readThrough(ctx, prefix, key, func() ([]entity.Candle, error) {
		return c.inner.Range(ctx, symbol, start, end, limit)
	})
}

func (c *CachingCandleRepository) readThrough(ctx context.Context, prefix, key string, load func() ([]entity.Candle, error)) ([]entity.Candle, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return load()
	}

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.Candle
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	gen := c.generation(prefix)
	out, err := load()
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort), unless a write invalidated meanwhile
	if b, err := json.Marshal(out); err == nil {
		c.mu.Lock()
		if c.gen[prefix] == gen {
			_ = c.rdb.Set(ctx, key, b, TimeUntilNextBoundary(c.now(), c.period)).Err()
		}
		c.mu.Unlock()
	}

	return out, nil
}

func (c *CachingCandleRepository) invalidate(ctx context.Context, candles []entity.Candle) {
	if c.rdb == nil || len(candles) == 0 {
		return
	}
	seen := map[string]struct{}{}
	for _, cd := range candles {
		prefix := c.cacheKeyPrefix(cd.Symbol)
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}

		c.mu.Lock()
		c.gen[prefix]++
		_ = c.deleteByPattern(ctx, prefix+"*") // Best effort: don't fail if cache deletion fails
		c.mu.Unlock()
	}
}

func (c *CachingCandleRepository) generation(prefix string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[prefix]
}

// cacheKeyPrefix generates a prefix shared by all cache entries of a symbol.
func (c *CachingCandleRepository) cacheKeyPrefix(symbol string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(symbol))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingCandleRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	return s
}
