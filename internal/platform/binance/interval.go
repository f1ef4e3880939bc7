package binance

import "time"

var fixedIntervals = map[string]time.Duration{
	"1s":  time.Second,
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration returns the length of a kline interval whose periods are
// aligned to the Unix epoch. Calendar intervals (3d, 1w, 1M) report false.
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := fixedIntervals[interval]
	return d, ok
}

// ValidInterval reports whether interval is a kline interval Binance serves.
func ValidInterval(interval string) bool {
	if _, ok := fixedIntervals[interval]; ok {
		return true
	}
	switch interval {
	case "3d", "1w", "1M":
		return true
	}
	return false
}
