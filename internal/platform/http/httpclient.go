package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates the client used for exchange REST calls.
//
// Settings:
//   - Proxy: honours HTTP_PROXY and friends
//   - Dialer.Timeout: connectTimeout bounds the TCP connect so one attempt never hangs
//   - Dialer.KeepAlive / IdleConnTimeout: paged backfills reuse one connection
//   - TLSHandshakeTimeout: bounded like the dial
//   - ResponseHeaderTimeout / Client.Timeout: the whole request is bounded by timeout
//
// http.DefaultClient has no timeout at all, so it must never be used for exchange calls.
func NewHTTPClient(timeout, connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
