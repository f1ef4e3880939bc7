// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	candleusecase "spectator/internal/feature/candles/usecase"
	regimeusecase "spectator/internal/feature/regime/usecase"
	"spectator/internal/platform/binance"
	"spectator/internal/platform/db"
	"spectator/internal/platform/redis"
)

// Config is the whole service configuration.
type Config struct {
	Market    MarketConfig    `envconfig:"MARKET"`
	Binance   binance.Config  `envconfig:"BINANCE"`
	Sync      SyncConfig      `envconfig:"SYNC"`
	Regime    RegimeConfig    `envconfig:"REGIME"`
	DB        db.Config       `envconfig:"DB"`
	Redis     redis.Config    `envconfig:"REDIS"`
	Broadcast BroadcastConfig `envconfig:"BROADCAST"`

	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// MarketConfig selects the instrument and candle interval.
type MarketConfig struct {
	Symbol   string `envconfig:"SYMBOL" default:"BTCUSDT"`
	Interval string `envconfig:"INTERVAL" default:"1h"`
}

// SyncConfig tunes seeding, gap-filling and reconnects.
type SyncConfig struct {
	SeedLimit         int           `envconfig:"SEED_LIMIT" default:"1000"`
	PageLimit         int           `envconfig:"PAGE_LIMIT" default:"1000"`
	PagePause         time.Duration `envconfig:"PAGE_PAUSE" default:"250ms"`
	RetryInitial      time.Duration `envconfig:"RETRY_INITIAL" default:"1s"`
	RetryMax          time.Duration `envconfig:"RETRY_MAX" default:"1m"`
	Window            int           `envconfig:"WINDOW" default:"500"`
	ResyncOnReconnect bool          `envconfig:"RESYNC_ON_RECONNECT" default:"true"`
}

// RegimeConfig holds the classifier periods and thresholds.
type RegimeConfig struct {
	EMAPeriod               int     `envconfig:"EMA_PERIOD" default:"200"`
	ADXPeriod               int     `envconfig:"ADX_PERIOD" default:"14"`
	ATRPeriod               int     `envconfig:"ATR_PERIOD" default:"14"`
	ATRBaselinePeriod       int     `envconfig:"ATR_BASELINE_PERIOD" default:"28"`
	ADXTrendThreshold       float64 `envconfig:"ADX_TREND_THRESHOLD" default:"20"`
	ATRVolatilityMultiplier float64 `envconfig:"ATR_VOLATILITY_MULTIPLIER" default:"1.5"`
}

// BroadcastConfig tunes tick fan-out.
type BroadcastConfig struct {
	MailboxSize        int    `envconfig:"MAILBOX_SIZE" default:"64"`
	RedisChannelPrefix string `envconfig:"REDIS_CHANNEL_PREFIX" default:"ticks"`
}

// Load reads .env if present, then the environment, and validates the result.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize puts values into the form the exchange and the store key on.
// Symbols are upper case everywhere, so btcusdt and BTCUSDT share one series.
func (c *Config) normalize() {
	c.Market.Symbol = strings.ToUpper(strings.TrimSpace(c.Market.Symbol))
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Market.Symbol == "" {
		errs = append(errs, errors.New("MARKET_SYMBOL must not be empty"))
	}
	if !binance.ValidInterval(c.Market.Interval) {
		errs = append(errs, fmt.Errorf("MARKET_INTERVAL %q is not a kline interval", c.Market.Interval))
	}

	r := c.Regime
	for name, v := range map[string]int{
		"REGIME_EMA_PERIOD":          r.EMAPeriod,
		"REGIME_ADX_PERIOD":          r.ADXPeriod,
		"REGIME_ATR_PERIOD":          r.ATRPeriod,
		"REGIME_ATR_BASELINE_PERIOD": r.ATRBaselinePeriod,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if r.ADXTrendThreshold < 0 {
		errs = append(errs, fmt.Errorf("REGIME_ADX_TREND_THRESHOLD must not be negative, got %g", r.ADXTrendThreshold))
	}
	if r.ATRVolatilityMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("REGIME_ATR_VOLATILITY_MULTIPLIER must be positive, got %g", r.ATRVolatilityMultiplier))
	}

	s := c.Sync
	if s.SeedLimit < 1 || s.SeedLimit > binance.MaxKlineLimit {
		errs = append(errs, fmt.Errorf("SYNC_SEED_LIMIT must be within 1..%d, got %d", binance.MaxKlineLimit, s.SeedLimit))
	}
	if s.PageLimit < 2 || s.PageLimit > binance.MaxKlineLimit {
		errs = append(errs, fmt.Errorf("SYNC_PAGE_LIMIT must be within 2..%d, got %d", binance.MaxKlineLimit, s.PageLimit))
	}
	if s.Window <= r.EMAPeriod {
		errs = append(errs, fmt.Errorf("SYNC_WINDOW (%d) must exceed REGIME_EMA_PERIOD (%d) or every tick is SIDEWAYS", s.Window, r.EMAPeriod))
	}
	if s.RetryInitial <= 0 || s.RetryMax < s.RetryInitial {
		errs = append(errs, fmt.Errorf("SYNC_RETRY_INITIAL (%s) must be positive and not above SYNC_RETRY_MAX (%s)", s.RetryInitial, s.RetryMax))
	}

	if c.Broadcast.MailboxSize < 1 {
		errs = append(errs, fmt.Errorf("BROADCAST_MAILBOX_SIZE must be positive, got %d", c.Broadcast.MailboxSize))
	}
	return errors.Join(errs...)
}

// Period returns the fixed length of the configured interval, or 0 for
// calendar intervals.
func (c *Config) Period() time.Duration {
	d, _ := binance.IntervalDuration(c.Market.Interval)
	return d
}

// ClassifierParams maps the REGIME_* settings to classifier parameters.
func (c *Config) ClassifierParams() regimeusecase.Params {
	return regimeusecase.Params{
		EMAPeriod:               c.Regime.EMAPeriod,
		ADXPeriod:               c.Regime.ADXPeriod,
		ATRPeriod:               c.Regime.ATRPeriod,
		ATRBaselinePeriod:       c.Regime.ATRBaselinePeriod,
		ADXTrendThreshold:       c.Regime.ADXTrendThreshold,
		ATRVolatilityMultiplier: c.Regime.ATRVolatilityMultiplier,
	}
}

// SyncParams maps the MARKET_* and SYNC_* settings to the synchronizer configuration.
func (c *Config) SyncParams() candleusecase.SyncConfig {
	return candleusecase.SyncConfig{
		Symbol:            c.Market.Symbol,
		Interval:          c.Market.Interval,
		Period:            c.Period(),
		SeedLimit:         c.Sync.SeedLimit,
		PageLimit:         c.Sync.PageLimit,
		Window:            c.Sync.Window,
		RetryInitial:      c.Sync.RetryInitial,
		RetryMax:          c.Sync.RetryMax,
		ResyncOnReconnect: c.Sync.ResyncOnReconnect,
	}
}
