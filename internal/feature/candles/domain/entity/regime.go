package entity

// Regime is the market condition derived from the most recent candles.
// It is recomputed on every candle and never stored.
type Regime string

const (
	RegimeTrendingUp   Regime = "TRENDING_UP"   // price above the long EMA with directional strength
	RegimeTrendingDown Regime = "TRENDING_DOWN" // price at or below the long EMA with directional strength
	RegimeSideways     Regime = "SIDEWAYS"      // no directional strength
	RegimeVolatile     Regime = "VOLATILE"      // true range well above its own average
)

// MarketTick pairs the latest candle with the regime it was classified into.
type MarketTick struct {
	Candle Candle `json:"candle"`
	Regime Regime `json:"regime"`
}
