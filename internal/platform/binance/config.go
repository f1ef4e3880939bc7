// Package binance provides the Binance spot market-data clients: the paged
// kline REST endpoint and the kline WebSocket stream.
package binance

import "time"

// Config holds configuration for the Binance clients.
type Config struct {
	RESTBaseURL    string        `envconfig:"REST_URL" default:"https://api.binance.com"`            // REST base URL
	StreamBaseURL  string        `envconfig:"STREAM_URL" default:"wss://stream.binance.com:9443/ws"` // raw stream base URL
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`                         // whole REST request
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`                         // TCP/TLS/WebSocket handshake
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"1m"`                             // silence before a stream is considered dead
}
