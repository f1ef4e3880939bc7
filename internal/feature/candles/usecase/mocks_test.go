package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"spectator/internal/feature/candles/domain"
	"spectator/internal/feature/candles/domain/entity"
)

// ErrDB is a sentinel shared between mocks and expectations.
var ErrDB = errors.New("database error")

// ErrMarketAPI is a sentinel for exchange failures.
var ErrMarketAPI = errors.New("market API error")

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// bar builds a valid hourly candle closing at px.
func bar(at time.Time, px string) entity.Candle {
	c := decimal.RequireFromString(px)
	return entity.Candle{
		Symbol: "BTCUSDT",
		Time:   at,
		Open:   c,
		High:   c.Add(decimal.NewFromInt(1)),
		Low:    c.Sub(decimal.NewFromInt(1)),
		Close:  c,
		Volume: decimal.NewFromInt(10),
	}
}

// series returns n consecutive hourly candles, the last one opening at end.
func series(n int, end time.Time) []entity.Candle {
	out := make([]entity.Candle, n)
	for i := range out {
		at := end.Add(-time.Duration(n-1-i) * time.Hour)
		out[i] = bar(at, decimal.NewFromInt(int64(40000+i)).String())
	}
	return out
}

// memStore is an in-memory CandleRepository keyed like the real store.
type memStore struct {
	mu      sync.Mutex
	candles map[entity.Key]entity.Candle

	// UpsertBatchErr, when set, is consulted before every batch write.
	UpsertBatchErr   func(call int) error
	UpsertErr        error
	UpsertCalls      int
	UpsertBatchCalls int
}

func newMemStore(seed ...entity.Candle) *memStore {
	s := &memStore{candles: map[entity.Key]entity.Candle{}}
	for _, c := range seed {
		s.candles[c.Key()] = c
	}
	return s
}

func (s *memStore) Upsert(ctx context.Context, c entity.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertCalls++
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.candles[c.Key()] = c
	return nil
}

func (s *memStore) UpsertBatch(ctx context.Context, cs []entity.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertBatchCalls++
	if s.UpsertBatchErr != nil {
		if err := s.UpsertBatchErr(s.UpsertBatchCalls); err != nil {
			return err
		}
	}
	for _, c := range cs {
		s.candles[c.Key()] = c
	}
	return nil
}

func (s *memStore) sorted(symbol string) []entity.Candle {
	var out []entity.Candle
	for _, c := range s.candles {
		if c.Symbol == symbol {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func (s *memStore) MostRecent(ctx context.Context, symbol string) (entity.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted(symbol)
	if len(all) == 0 {
		return entity.Candle{}, domain.ErrCandleNotFound
	}
	return all[len(all)-1], nil
}

func (s *memStore) LastN(ctx context.Context, symbol string, n int) ([]entity.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted(symbol)
	out := make([]entity.Candle, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *memStore) Range(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Candle
	for _, c := range s.sorted(symbol) {
		if limit > 0 && len(out) == limit {
			break
		}
		if !c.Time.Before(start) && !c.Time.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candles)
}

// fakeExchange serves GetKlines from a fixed, oldest-first candle series the
// way the kline endpoint does.
type fakeExchange struct {
	mu     sync.Mutex
	bars   []entity.Candle
	starts []time.Time
	limits []int

	// Err, when set, is consulted before every call.
	Err func(call int) error
}

func (f *fakeExchange) GetKlines(ctx context.Context, symbol, interval string, limit int, startTime time.Time) ([]entity.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startTime)
	f.limits = append(f.limits, limit)
	if f.Err != nil {
		if err := f.Err(len(f.starts)); err != nil {
			return nil, err
		}
	}

	if startTime.IsZero() {
		from := max(0, len(f.bars)-limit)
		return append([]entity.Candle(nil), f.bars[from:]...), nil
	}
	var page []entity.Candle
	for _, c := range f.bars {
		if !c.Time.Before(startTime) && len(page) < limit {
			page = append(page, c)
		}
	}
	return page, nil
}

func (f *fakeExchange) Starts() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.starts...)
}

// mockMarketRepository is a function-field MarketRepository.
type mockMarketRepository struct {
	GetKlinesFunc  func(ctx context.Context, symbol, interval string, limit int, startTime time.Time) ([]entity.Candle, error)
	GetKlinesCalls int
}

func (m *mockMarketRepository) GetKlines(ctx context.Context, symbol, interval string, limit int, startTime time.Time) ([]entity.Candle, error) {
	m.GetKlinesCalls++
	if m.GetKlinesFunc != nil {
		return m.GetKlinesFunc(ctx, symbol, interval, limit, startTime)
	}
	return nil, errors.New("GetKlinesFunc is not implemented")
}

// mockStream is a function-field MarketStream.
type mockStream struct {
	ConnectFunc  func(ctx context.Context, call int, onCandle func(entity.Candle)) error
	ConnectCalls atomic.Int32
}

func (m *mockStream) Connect(ctx context.Context, symbol, interval string, onCandle func(entity.Candle)) error {
	call := int(m.ConnectCalls.Add(1))
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, call, onCandle)
	}
	<-ctx.Done()
	return ctx.Err()
}

// mockClassifier is a function-field RegimeClassifier.
type mockClassifier struct {
	ClassifyFunc func(window []entity.Candle) entity.Regime
}

func (m *mockClassifier) Classify(window []entity.Candle) entity.Regime {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(window)
	}
	return entity.RegimeSideways
}

// chanPublisher forwards published ticks to a channel.
type chanPublisher struct {
	ticks chan entity.MarketTick
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{ticks: make(chan entity.MarketTick, 16)}
}

func (p *chanPublisher) Publish(tick entity.MarketTick) {
	p.ticks <- tick
}

// countingPacer records Wait calls without sleeping.
type countingPacer struct {
	calls atomic.Int32

	// OnWait, when set, runs on every call.
	OnWait func()
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.calls.Add(1)
	if p.OnWait != nil {
		p.OnWait()
	}
	return ctx.Err()
}
