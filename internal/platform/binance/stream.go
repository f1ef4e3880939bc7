package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/candles/usecase"
	"spectator/internal/platform/binance/dto"
)

// ErrStreamClosed is returned by Connect when the transport goes away.
var ErrStreamClosed = errors.New("binance: kline stream closed")

// StreamClient consumes the <symbol>@kline_<interval> WebSocket stream.
// It does not reconnect; the caller owns the retry policy.
type StreamClient struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

// StreamClient must satisfy usecase.MarketStream.
var _ usecase.MarketStream = (*StreamClient)(nil)

// NewStreamClient creates a StreamClient. A nil logger falls back to slog.Default().
func NewStreamClient(cfg Config, logger *slog.Logger) *StreamClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamClient{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		logger: logger.With("component", "kline_stream"),
	}
}

// Connect opens the stream and calls onCandle for every decoded message, in
// arrival order, including updates of the still-forming candle. It blocks until
// ctx is cancelled (returning ctx.Err()) or the connection drops (returning an
// error wrapping ErrStreamClosed). Undecodable messages are logged and skipped.
func (s *StreamClient) Connect(ctx context.Context, symbol, interval string, onCandle func(entity.Candle)) error {
	u := fmt.Sprintf("%s/%s@kline_%s", strings.TrimRight(s.cfg.StreamBaseURL, "/"), strings.ToLower(symbol), interval)

	dialCtx := ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, res, err := s.dialer.DialContext(dialCtx, u, nil)
	if err != nil {
		if res != nil {
			return fmt.Errorf("dial %s: http %d: %w", u, res.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()
	s.logger.Info("kline stream connected", "url", u)

	// Closing the connection is the only way to unblock ReadMessage.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	candles := make(chan entity.Candle, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(candles)
		readErr <- s.readLoop(conn, candles)
	}()

	for c := range candles {
		onCandle(c)
	}

	err = <-readErr
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.logger.Warn("kline stream closed", "url", u, "error", err)
	return fmt.Errorf("%w: %w", ErrStreamClosed, err)
}

func (s *StreamClient) readLoop(conn *websocket.Conn, out chan<- entity.Candle) error {
	extend := func() {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
	}
	extend()
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		extend()

		c, err := decodeKlineEvent(msg)
		if err != nil {
			s.logger.Warn("skipping undecodable kline message", "error", err, "payload", truncate(msg, 256))
			continue
		}
		out <- c
	}
}

func decodeKlineEvent(msg []byte) (entity.Candle, error) {
	var ev dto.KlineEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return entity.Candle{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if ev.Symbol == "" || ev.Kline.StartTime == 0 {
		return entity.Candle{}, fmt.Errorf("%w: not a kline event", ErrDecode)
	}
	k := ev.Kline
	return parseCandle(ev.Symbol, k.StartTime, k.Open, k.High, k.Low, k.Close, k.Volume)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
