package di

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"spectator/internal/feature/candles/adapters"
	"spectator/internal/feature/candles/usecase"
	"spectator/internal/platform/cache"
)

// NewCandleRepository creates the candle store. When Redis is available the
// PostgreSQL repository is wrapped in a read-through cache whose entries
// expire at the next period boundary.
func NewCandleRepository(db *gorm.DB, rdb *redis.Client, period time.Duration) usecase.CandleRepository {
	repo := adapters.NewCandleRepository(db)
	if rdb == nil {
		return repo
	}
	return cache.NewCachingCandleRepository(rdb, period, repo, "candles")
}
