// Package entity defines the domain models for the candles feature.
package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spectator/internal/feature/candles/domain"
)

// Candle represents one OHLCV (Open, High, Low, Close, Volume) bar
// for a trading symbol. A candle is identified by (Symbol, Time).
type Candle struct {
	Symbol string          `json:"symbol"` // Exchange symbol (e.g., "BTCUSDT")
	Time   time.Time       `json:"time"`   // Open time of the period, UTC
	Open   decimal.Decimal `json:"open"`   // Opening price
	High   decimal.Decimal `json:"high"`   // Highest price during this period
	Low    decimal.Decimal `json:"low"`    // Lowest price during this period
	Close  decimal.Decimal `json:"close"`  // Closing (or latest) price
	Volume decimal.Decimal `json:"volume"` // Base asset volume
}

// Key identifies a candle in storage.
type Key struct {
	Symbol string
	Time   time.Time
}

// Key returns the storage identity of the candle.
func (c Candle) Key() Key {
	return Key{Symbol: c.Symbol, Time: c.Time.UTC()}
}

// Validate checks the OHLC ordering invariant:
//
//	low <= min(open, close) <= max(open, close) <= high
//
// and that no value is negative. The returned error describes the raw values
// so a rejected bar can be diagnosed from the log line alone.
func (c Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", domain.ErrInvalidCandle)
	}
	if c.Time.IsZero() {
		return fmt.Errorf("%w: %s: zero open time", domain.ErrInvalidCandle, c.Symbol)
	}
	for name, v := range map[string]decimal.Decimal{
		"open": c.Open, "high": c.High, "low": c.Low, "close": c.Close, "volume": c.Volume,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s@%s: negative %s %s", domain.ErrInvalidCandle, c.Symbol, c.Time.UTC().Format(time.RFC3339), name, v)
		}
	}

	lo := decimal.Min(c.Open, c.Close)
	hi := decimal.Max(c.Open, c.Close)
	if c.Low.GreaterThan(lo) || hi.GreaterThan(c.High) {
		return fmt.Errorf("%w: %s@%s: ohlc out of order o=%s h=%s l=%s c=%s",
			domain.ErrInvalidCandle, c.Symbol, c.Time.UTC().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
	}
	return nil
}

// ValidateAligned runs Validate and also requires the open time to fall on a
// multiple of period since the Unix epoch. A non-positive period skips the
// alignment check.
func (c Candle) ValidateAligned(period time.Duration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if period > 0 && c.Time.UnixNano()%int64(period) != 0 {
		return fmt.Errorf("%w: %s@%s: open time not aligned to %s",
			domain.ErrInvalidCandle, c.Symbol, c.Time.UTC().Format(time.RFC3339), period)
	}
	return nil
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close.GreaterThan(c.Open)
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close.LessThan(c.Open)
}
