package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/ticks/domain"
	"spectator/internal/feature/ticks/transport/handler"
	"spectator/internal/feature/ticks/usecase"
)

func tick(symbol string, px string) entity.MarketTick {
	d := decimal.RequireFromString(px)
	return entity.MarketTick{
		Candle: entity.Candle{
			Symbol: symbol,
			Time:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Open:   d, High: d, Low: d, Close: d,
			Volume: decimal.RequireFromString("2.5"),
		},
		Regime: entity.RegimeTrendingUp,
	}
}

func newServer(t *testing.T) (*usecase.Broadcaster, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := usecase.NewBroadcaster(16, nil)
	h := handler.NewTicksHandler(b, nil)
	r := gin.New()
	r.GET("/ws/ticks", h.Stream)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		b.Close()
	})
	return b, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ticks"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	res.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTicksHandler_Stream_DeliversJSONFrames(t *testing.T) {
	b, url := newServer(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, 5*time.Millisecond)

	b.Publish(tick("BTCUSDT", "43210.55"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.TickMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, domain.TickMessage{
		Symbol: "BTCUSDT",
		Time:   "2024-03-01T12:00:00Z",
		Open:   "43210.55",
		High:   "43210.55",
		Low:    "43210.55",
		Close:  "43210.55",
		Volume: "2.5",
		Regime: "TRENDING_UP",
	}, got)
}

func TestTicksHandler_Stream_SymbolFilter(t *testing.T) {
	b, url := newServer(t)
	conn := dial(t, url+"?symbol=ethusdt")
	require.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, 5*time.Millisecond)

	b.Publish(tick("BTCUSDT", "43000"))
	b.Publish(tick("ETHUSDT", "3100"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.TickMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "ETHUSDT", got.Symbol)
	assert.Equal(t, "3100", got.Close)
}

func TestTicksHandler_Stream_UnregistersOnDisconnect(t *testing.T) {
	b, url := newServer(t)
	conn := dial(t, url)
	other := dial(t, url)
	require.Eventually(t, func() bool { return b.Len() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return b.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	b.Publish(tick("BTCUSDT", "43000"))
	_ = other.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.TickMessage
	require.NoError(t, other.ReadJSON(&got), "remaining client keeps streaming")
}

func TestTicksHandler_Stream_RejectsPlainHTTP(t *testing.T) {
	b, url := newServer(t)

	res, err := http.Get("http" + strings.TrimPrefix(url, "ws"))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, 0, b.Len())
}
