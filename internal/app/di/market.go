// Package di provides dependency injection factories for creating application components.
package di

import (
	"log/slog"

	"spectator/internal/platform/binance"
	infrahttp "spectator/internal/platform/http"
)

// NewMarket creates a KlineClient with its own pooled HTTP client.
func NewMarket(cfg binance.Config) *binance.KlineClient {
	httpClient := infrahttp.NewHTTPClient(cfg.RequestTimeout, cfg.ConnectTimeout)
	return binance.NewKlineClient(cfg, httpClient)
}

// NewStream creates the kline WebSocket client.
func NewStream(cfg binance.Config, logger *slog.Logger) *binance.StreamClient {
	return binance.NewStreamClient(cfg, logger)
}
