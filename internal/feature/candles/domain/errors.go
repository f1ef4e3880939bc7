// Package domain defines domain-level errors for the candles feature.
package domain

import "errors"

var (
	// ErrCandleNotFound indicates that the store holds no candle for the symbol.
	// Returned by MostRecent on an empty store.
	ErrCandleNotFound = errors.New("candle not found")

	// ErrInvalidCandle indicates that a candle violates the OHLC invariant, has a
	// negative value or is not aligned to its interval. Such candles never reach the store.
	ErrInvalidCandle = errors.New("invalid candle")
)
