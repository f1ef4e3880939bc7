// Package domain defines the wire form of a classified tick.
package domain

import (
	"time"

	"spectator/internal/feature/candles/domain/entity"
)

// TickMessage is the JSON frame sent to tick consumers. Decimal values are
// strings.
type TickMessage struct {
	Symbol string `json:"symbol"`
	Time   string `json:"time"` // candle open time, RFC 3339 UTC
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
	Regime string `json:"regime"`
}

func NewTickMessage(t entity.MarketTick) TickMessage {
	c := t.Candle
	return TickMessage{
		Symbol: c.Symbol,
		Time:   c.Time.UTC().Format(time.RFC3339),
		Open:   c.Open.String(),
		High:   c.High.String(),
		Low:    c.Low.String(),
		Close:  c.Close.String(),
		Volume: c.Volume.String(),
		Regime: string(t.Regime),
	}
}
