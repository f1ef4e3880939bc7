// Package adapters re-publishes ticks to out-of-process consumers.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/ticks/domain"
)

const (
	// DefaultChannelPrefix yields channels such as "ticks:BTCUSDT".
	DefaultChannelPrefix = "ticks"

	publishTimeout = 2 * time.Second
)

// RedisRelay publishes each tick as JSON on a per-symbol Redis channel.
type RedisRelay struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRelay(rdb *redis.Client, prefix string) *RedisRelay {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisRelay{rdb: rdb, prefix: prefix}
}

// Channel returns the channel ticks of symbol are published on.
func (r *RedisRelay) Channel(symbol string) string {
	return r.prefix + ":" + symbol
}

// Relay publishes tick. It has the broadcaster's subscriber signature, so
// it runs on its own mailbox goroutine and a slow Redis never holds up other
// subscribers.
func (r *RedisRelay) Relay(tick entity.MarketTick) error {
	payload, err := json.Marshal(domain.NewTickMessage(tick))
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.Channel(tick.Candle.Symbol), payload).Err(); err != nil {
		return fmt.Errorf("publish tick to %s: %w", r.Channel(tick.Candle.Symbol), err)
	}
	return nil
}
