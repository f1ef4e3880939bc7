// Package dto holds the JSON shapes served by the candles endpoints.
package dto

import (
	"time"

	"spectator/internal/feature/candles/domain/entity"
)

// CandleResponse is one candle. Prices and volume are decimal strings so no
// precision is lost in transit.
type CandleResponse struct {
	Symbol string `json:"symbol"`
	Time   string `json:"time"` // open time, RFC 3339 UTC
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// RegimeResponse is the current regime of a symbol.
type RegimeResponse struct {
	Symbol string `json:"symbol"`
	Regime string `json:"regime"`
	Time   string `json:"time"` // open time of the newest classified candle
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewCandleResponse(c entity.Candle) CandleResponse {
	return CandleResponse{
		Symbol: c.Symbol,
		Time:   c.Time.UTC().Format(time.RFC3339),
		Open:   c.Open.String(),
		High:   c.High.String(),
		Low:    c.Low.String(),
		Close:  c.Close.String(),
		Volume: c.Volume.String(),
	}
}

func NewCandleResponses(cs []entity.Candle) []CandleResponse {
	out := make([]CandleResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, NewCandleResponse(c))
	}
	return out
}

func NewRegimeResponse(t entity.MarketTick) RegimeResponse {
	return RegimeResponse{
		Symbol: t.Candle.Symbol,
		Regime: string(t.Regime),
		Time:   t.Candle.Time.UTC().Format(time.RFC3339),
	}
}
