// Package usecase implements the business logic for candle synchronization and queries.
package usecase

import (
	"context"
	"fmt"
	"time"

	"spectator/internal/feature/candles/domain"
	"spectator/internal/feature/candles/domain/entity"
)

const (
	// DefaultOutputSize is the number of candles returned when no limit is given.
	DefaultOutputSize = 500
	// MaxOutputSize is the largest number of candles returned by one query.
	MaxOutputSize = 5000
)

// CandleRepository abstracts the candle store.
// Following Go convention, the interface is defined by the consumer (usecase).
type CandleRepository interface {
	// Upsert inserts the candle or replaces the stored one with the same key.
	Upsert(ctx context.Context, c entity.Candle) error
	// UpsertBatch upserts every candle in cs.
	UpsertBatch(ctx context.Context, cs []entity.Candle) error
	// MostRecent returns the candle with the latest open time,
	// or domain.ErrCandleNotFound when the store holds none for symbol.
	MostRecent(ctx context.Context, symbol string) (entity.Candle, error)
	// LastN returns up to n candles, newest first.
	LastN(ctx context.Context, symbol string, n int) ([]entity.Candle, error)
	// Range returns candles opening within [start, end], oldest first.
	// A positive limit keeps only the oldest limit candles.
	Range(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Candle, error)
}

// RegimeClassifier labels a candle window ordered oldest first.
type RegimeClassifier interface {
	Classify(window []entity.Candle) entity.Regime
}

// candlesUsecase serves read queries over the stored candles.
type candlesUsecase struct {
	candle     CandleRepository
	classifier RegimeClassifier
	window     int
}

// NewCandlesUsecase creates a candlesUsecase. window is the number of candles
// handed to the classifier by CurrentRegime.
func NewCandlesUsecase(candle CandleRepository, classifier RegimeClassifier, window int) *candlesUsecase {
	if window <= 0 {
		window = DefaultWindow
	}
	return &candlesUsecase{candle: candle, classifier: classifier, window: window}
}

// GetCandles returns the latest candles for symbol, oldest first.
func (cu *candlesUsecase) GetCandles(ctx context.Context, symbol string, limit int) ([]entity.Candle, error) {
	if limit <= 0 || limit > MaxOutputSize {
		limit = DefaultOutputSize
	}

	cs, err := cu.candle.LastN(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	reverse(cs)
	return cs, nil
}

// GetRange returns the candles of symbol opening within [start, end], oldest
// first. At most MaxOutputSize candles are returned, starting from start.
func (cu *candlesUsecase) GetRange(ctx context.Context, symbol string, start, end time.Time) ([]entity.Candle, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return cu.candle.Range(ctx, symbol, start, end, MaxOutputSize)
}

// CurrentRegime classifies the latest window of symbol on demand and returns
// it as a tick for the newest stored candle.
func (cu *candlesUsecase) CurrentRegime(ctx context.Context, symbol string) (entity.MarketTick, error) {
	cs, err := cu.candle.LastN(ctx, symbol, cu.window)
	if err != nil {
		return entity.MarketTick{}, err
	}
	if len(cs) == 0 {
		return entity.MarketTick{}, domain.ErrCandleNotFound
	}

	latest := cs[0]
	reverse(cs)
	return entity.MarketTick{Candle: latest, Regime: cu.classifier.Classify(cs)}, nil
}

// reverse turns a newest-first slice into oldest-first order in place.
func reverse(cs []entity.Candle) {
	for i, j := 0, len(cs)-1; i < j; i, j = i+1, j-1 {
		cs[i], cs[j] = cs[j], cs[i]
	}
}
