package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klinesBody = `[
  [1704067200000, "42283.58000000", "42554.57000000", "42261.02000000", "42475.23000000", "1271.68108000", 1704070799999, "53957248.97", 47134, "682.57", "28957416.82", "0"],
  [1704070800000, "42475.23000000", "42775.00000000", "42431.65000000", "42613.56000000", "1196.37856000", 1704074399999, "50984893.64", 43809, "629.14", "26807236.16", "0"]
]`

func newTestClient(t *testing.T, h http.HandlerFunc) *KlineClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewKlineClient(Config{RESTBaseURL: srv.URL}, srv.Client())
}

func TestKlineClient_GetKlines_Success(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		assert.False(t, r.URL.Query().Has("startTime"), "startTime must be omitted when zero")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesBody))
	})

	candles, err := c.GetKlines(context.Background(), "BTCUSDT", "1h", 1000, time.Time{})
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, "42283.58", first.Open.String())
	assert.Equal(t, "42554.57", first.High.String())
	assert.Equal(t, "42261.02", first.Low.String())
	assert.Equal(t, "42475.23", first.Close.String())
	assert.Equal(t, "1271.68108", first.Volume.String())
	assert.True(t, candles[1].Time.After(first.Time), "candles must be oldest first")
}

func TestKlineClient_GetKlines_StartTimeAndLimitCap(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1704085200000", r.URL.Query().Get("startTime"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"), "limit above the cap is clamped")
		_, _ = w.Write([]byte(`[]`))
	})

	candles, err := c.GetKlines(context.Background(), "BTCUSDT", "1h", 5000, start)
	require.NoError(t, err)
	assert.Empty(t, candles, "exhausted range is an empty page, not an error")
}

func TestKlineClient_GetKlines_PreservesDecimalPrecision(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1704067200000, "0.00000001", "0.30000000000000001", "0.00000001", "0.3", "123456789.123456789"]]`))
	})

	candles, err := c.GetKlines(context.Background(), "SHIBUSDT", "1h", 1, time.Time{})
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "0.30000000000000001", candles[0].High.String())
	assert.Equal(t, "123456789.123456789", candles[0].Volume.String())
}

func TestKlineClient_GetKlines_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		wantDecod bool
	}{
		{"api error body", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, "Invalid symbol.", false},
		{"bare 5xx", http.StatusServiceUnavailable, `oops`, "binance http 503", false},
		{"not json", http.StatusOK, `<html>`, "decode", true},
		{"number price", http.StatusOK, `[[1704067200000, 1.5, "2", "1", "1.5", "1"]]`, "field 1", true},
		{"bad decimal", http.StatusOK, `[[1704067200000, "1.5", "abc", "1", "1.5", "1"]]`, "high", true},
		{"short row", http.StatusOK, `[[1704067200000, "1.5"]]`, "2 fields", true},
		{"string open time", http.StatusOK, `[["x", "1", "1", "1", "1", "1"]]`, "open time", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			candles, err := c.GetKlines(context.Background(), "BTCUSDT", "1h", 10, time.Time{})
			require.Error(t, err)
			assert.Nil(t, candles)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, tt.wantDecod, errors.Is(err, ErrDecode))
		})
	}
}

func TestKlineClient_GetKlines_ContextCancelled(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetKlines(ctx, "BTCUSDT", "1h", 10, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIntervalDuration(t *testing.T) {
	t.Parallel()

	d, ok := IntervalDuration("1h")
	assert.True(t, ok)
	assert.Equal(t, time.Hour, d)

	_, ok = IntervalDuration("1w")
	assert.False(t, ok)

	assert.True(t, ValidInterval("1w"))
	assert.True(t, ValidInterval("15m"))
	assert.False(t, ValidInterval("1y"))
	assert.False(t, ValidInterval("1H"))
}
