// Package usecase classifies the market regime of a candle window.
package usecase

import (
	"log/slog"

	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/regime/indicator"
)

// Params holds the indicator periods and decision thresholds.
type Params struct {
	EMAPeriod               int     // long trend filter on closes
	ADXPeriod               int     // directional strength
	ATRPeriod               int     // volatility
	ATRBaselinePeriod       int     // SMA of ATR used as the volatility baseline
	ADXTrendThreshold       float64 // below this ADX the market is sideways
	ATRVolatilityMultiplier float64 // ATR above baseline*multiplier is volatile
}

// DefaultParams returns the classic EMA200 / ADX14 / ATR14 setup.
func DefaultParams() Params {
	return Params{
		EMAPeriod:               200,
		ADXPeriod:               14,
		ATRPeriod:               14,
		ATRBaselinePeriod:       28,
		ADXTrendThreshold:       20,
		ATRVolatilityMultiplier: 1.5,
	}
}

// Analysis is a regime together with the indicator readings that produced it.
type Analysis struct {
	Regime      entity.Regime `json:"regime"`
	Close       float64       `json:"close"`
	EMA         float64       `json:"ema"`
	ADX         float64       `json:"adx"`
	ATR         float64       `json:"atr"`
	BaselineATR float64       `json:"baseline_atr"`
	Bars        int           `json:"bars"`
}

// Classifier maps a candle window to a Regime. It keeps no state between calls.
type Classifier struct {
	params Params
	logger *slog.Logger
}

// NewClassifier creates a Classifier. A nil logger falls back to slog.Default().
func NewClassifier(params Params, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{params: params, logger: logger}
}

// Classify returns the regime of the newest candle in window (ordered oldest first).
func (c *Classifier) Classify(window []entity.Candle) entity.Regime {
	return c.Analyze(window).Regime
}

// Analyze computes the indicators at the newest candle and applies the decision
// cascade: VOLATILE, then SIDEWAYS, then TRENDING_UP / TRENDING_DOWN.
//
// Only candles of the newest candle's symbol are used. Missing periods inside the
// window are not filled in; the indicators run over the candles that are present,
// so a gap shortens the effective lookback rather than inventing prices.
// Windows no longer than EMAPeriod yield SIDEWAYS.
func (c *Classifier) Analyze(window []entity.Candle) Analysis {
	window = sameSymbol(window)
	if len(window) <= c.params.EMAPeriod {
		c.logger.Debug("not enough candles for trend filter, defaulting to sideways",
			"need", c.params.EMAPeriod+1, "got", len(window))
		return Analysis{Regime: entity.RegimeSideways, Bars: len(window)}
	}

	bars := make([]indicator.Bar, len(window))
	closes := make([]float64, len(window))
	for i, cd := range window {
		bars[i] = indicator.Bar{
			High:  cd.High.InexactFloat64(),
			Low:   cd.Low.InexactFloat64(),
			Close: cd.Close.InexactFloat64(),
		}
		closes[i] = bars[i].Close
	}

	atr := indicator.ATR(bars, c.params.ATRPeriod)
	a := Analysis{
		Close:       closes[len(closes)-1],
		EMA:         indicator.EMA(closes, c.params.EMAPeriod),
		ADX:         indicator.ADX(bars, c.params.ADXPeriod),
		ATR:         atr[len(atr)-1],
		BaselineATR: indicator.SMA(atr, c.params.ATRBaselinePeriod),
		Bars:        len(window),
	}

	switch {
	case a.ATR > a.BaselineATR*c.params.ATRVolatilityMultiplier:
		a.Regime = entity.RegimeVolatile
	case a.ADX < c.params.ADXTrendThreshold:
		a.Regime = entity.RegimeSideways
	case a.Close > a.EMA:
		a.Regime = entity.RegimeTrendingUp
	default:
		a.Regime = entity.RegimeTrendingDown
	}

	c.logger.Debug("regime classified",
		"symbol", window[len(window)-1].Symbol,
		"time", window[len(window)-1].Time,
		"regime", a.Regime,
		"close", a.Close, "ema", a.EMA, "adx", a.ADX, "atr", a.ATR, "baseline_atr", a.BaselineATR)
	return a
}

// sameSymbol drops candles whose symbol differs from the newest candle's.
func sameSymbol(window []entity.Candle) []entity.Candle {
	if len(window) == 0 {
		return window
	}
	symbol := window[len(window)-1].Symbol
	for _, cd := range window {
		if cd.Symbol != symbol {
			out := make([]entity.Candle, 0, len(window))
			for _, x := range window {
				if x.Symbol == symbol {
					out = append(out, x)
				}
			}
			return out
		}
	}
	return window
}
