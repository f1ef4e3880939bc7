package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/candles/usecase"
	"spectator/internal/platform/binance/dto"
)

// MaxKlineLimit is the largest page the kline endpoint serves.
const MaxKlineLimit = 1000

// ErrDecode is returned when a REST page or stream message cannot be mapped to candles.
var ErrDecode = errors.New("binance: decode")

// KlineClient fetches historical candles from the /api/v3/klines endpoint.
type KlineClient struct {
	cfg    Config
	client *http.Client
}

// KlineClient must satisfy usecase.MarketRepository.
var _ usecase.MarketRepository = (*KlineClient)(nil)

// NewKlineClient creates a KlineClient with the given configuration and HTTP client.
func NewKlineClient(cfg Config, client *http.Client) *KlineClient {
	return &KlineClient{cfg: cfg, client: client}
}

// GetKlines returns up to limit candles, oldest first. When startTime is
// non-zero the page starts at the first candle opening at or after it.
// An exhausted range yields an empty slice and a nil error. No retries are made.
func (k *KlineClient) GetKlines(ctx context.Context, symbol, interval string, limit int, startTime time.Time) ([]entity.Candle, error) {
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if !startTime.IsZero() {
		q.Set("startTime", strconv.FormatInt(startTime.UnixMilli(), 10))
	}
	u := fmt.Sprintf("%s/api/v3/klines?%s", strings.TrimRight(k.cfg.RESTBaseURL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return nil, apiError(res)
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: klines body: %w", ErrDecode, err)
	}

	candles := make([]entity.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := rowToCandle(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// rowToCandle maps [openTime, open, high, low, close, volume, ...] to a candle.
func rowToCandle(symbol string, row []any) (entity.Candle, error) {
	if len(row) < 6 {
		return entity.Candle{}, fmt.Errorf("%w: kline row has %d fields", ErrDecode, len(row))
	}
	n, ok := row[0].(json.Number)
	if !ok {
		return entity.Candle{}, fmt.Errorf("%w: open time %v is not a number", ErrDecode, row[0])
	}
	openMs, err := n.Int64()
	if err != nil {
		return entity.Candle{}, fmt.Errorf("%w: open time %q: %w", ErrDecode, n, err)
	}

	var values [5]string
	for i := range values {
		s, ok := row[i+1].(string)
		if !ok {
			return entity.Candle{}, fmt.Errorf("%w: field %d is %T, want string", ErrDecode, i+1, row[i+1])
		}
		values[i] = s
	}
	return parseCandle(symbol, openMs, values[0], values[1], values[2], values[3], values[4])
}

// parseCandle builds a candle from wire text without passing through float64.
func parseCandle(symbol string, openMs int64, o, h, l, c, v string) (entity.Candle, error) {
	fields := [5]struct {
		name string
		raw  string
		dst  decimal.Decimal
	}{{name: "open", raw: o}, {name: "high", raw: h}, {name: "low", raw: l}, {name: "close", raw: c}, {name: "volume", raw: v}}

	for i := range fields {
		d, err := decimal.NewFromString(fields[i].raw)
		if err != nil {
			return entity.Candle{}, fmt.Errorf("%w: %s %q: %w", ErrDecode, fields[i].name, fields[i].raw, err)
		}
		fields[i].dst = d
	}

	return entity.Candle{
		Symbol: symbol,
		Time:   time.UnixMilli(openMs).UTC(),
		Open:   fields[0].dst,
		High:   fields[1].dst,
		Low:    fields[2].dst,
		Close:  fields[3].dst,
		Volume: fields[4].dst,
	}, nil
}

func apiError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var e dto.APIError
	if json.Unmarshal(body, &e) == nil && e.Msg != "" {
		return fmt.Errorf("binance http %d: code %d: %s", res.StatusCode, e.Code, e.Msg)
	}
	return fmt.Errorf("binance http %d", res.StatusCode)
}
