package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"spectator/internal/feature/candles/domain"
	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/shared/ratelimiter"
)

const (
	// DefaultSeedLimit is the number of candles fetched into an empty store.
	DefaultSeedLimit = 1000
	// DefaultPageLimit is the page size used while gap-filling.
	DefaultPageLimit = 1000
	// DefaultWindow is the number of stored candles handed to the classifier.
	DefaultWindow = 500
)

// MarketRepository fetches historical candles from the exchange.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketRepository interface {
	// GetKlines returns up to limit candles, oldest first, opening at or after
	// startTime. A zero startTime requests the most recent candles.
	GetKlines(ctx context.Context, symbol, interval string, limit int, startTime time.Time) ([]entity.Candle, error)
}

// MarketStream delivers live candle updates until ctx is done or the
// connection drops. It never reconnects by itself.
type MarketStream interface {
	Connect(ctx context.Context, symbol, interval string, onCandle func(entity.Candle)) error
}

// TickPublisher fans a classified tick out to subscribers.
type TickPublisher interface {
	Publish(tick entity.MarketTick)
}

// SyncState is the phase the Synchronizer is in.
type SyncState int32

const (
	StateSeeding SyncState = iota
	StateGapFilling
	StateStreaming
	StateReconnecting
)

func (s SyncState) String() string {
	switch s {
	case StateSeeding:
		return "SEEDING"
	case StateGapFilling:
		return "GAP_FILLING"
	case StateStreaming:
		return "STREAMING"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// SyncConfig configures a Synchronizer. Zero values fall back to the defaults.
type SyncConfig struct {
	Symbol   string
	Interval string
	// Period is the fixed length of Interval. When set, candles whose open
	// time is not aligned to it are rejected.
	Period            time.Duration
	SeedLimit         int
	PageLimit         int
	Window            int
	RetryInitial      time.Duration
	RetryMax          time.Duration
	ResyncOnReconnect bool
}

// Synchronizer keeps the candle store in step with the exchange: it seeds or
// gap-fills from the REST API, then follows the live stream, classifying and
// publishing every delivered candle.
//
// All writes happen on the goroutine running Run, so seeding and gap-filling
// always finish before the first stream connection and live writes never
// interleave with historical ones.
type Synchronizer struct {
	cfg        SyncConfig
	market     MarketRepository
	stream     MarketStream
	candle     CandleRepository
	classifier RegimeClassifier
	publisher  TickPublisher
	pacer      ratelimiter.RateLimiterInterface
	logger     *slog.Logger

	state atomic.Int32
}

// NewSynchronizer creates a Synchronizer. pacer spaces consecutive gap-fill
// pages; a nil pacer disables pacing. A nil logger falls back to slog.Default().
func NewSynchronizer(
	cfg SyncConfig,
	market MarketRepository,
	stream MarketStream,
	candle CandleRepository,
	classifier RegimeClassifier,
	publisher TickPublisher,
	pacer ratelimiter.RateLimiterInterface,
	logger *slog.Logger,
) *Synchronizer {
	if cfg.SeedLimit <= 0 {
		cfg.SeedLimit = DefaultSeedLimit
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = time.Second
	}
	if cfg.RetryMax < cfg.RetryInitial {
		cfg.RetryMax = max(time.Minute, cfg.RetryInitial)
	}
	if pacer == nil {
		pacer = ratelimiter.NewRateLimiter(0)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{
		cfg:        cfg,
		market:     market,
		stream:     stream,
		candle:     candle,
		classifier: classifier,
		publisher:  publisher,
		pacer:      pacer,
		logger:     logger.With("symbol", cfg.Symbol, "interval", cfg.Interval),
	}
}

// State returns the current phase. Safe for concurrent use.
func (s *Synchronizer) State() SyncState {
	return SyncState(s.state.Load())
}

func (s *Synchronizer) setState(st SyncState) {
	if SyncState(s.state.Swap(int32(st))) != st {
		s.logger.Info("sync state changed", "state", st.String())
	}
}

// Run backfills the store and then follows the live stream for the lifetime
// of ctx, reconnecting with exponential backoff whenever the stream drops.
// It returns only when ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	if err := s.Backfill(ctx); err != nil {
		return err
	}
	return s.follow(ctx)
}

// Backfill seeds an empty store or fills the gap between the newest stored
// candle and the exchange. Failed pages are retried until ctx is done, so the
// only errors returned are the context's and the pacer's, which fails early
// when its next slot lies past ctx's deadline.
func (s *Synchronizer) Backfill(ctx context.Context) error {
	return s.catchUp(ctx, true)
}

func (s *Synchronizer) catchUp(ctx context.Context, track bool) error {
	var last entity.Candle
	err := s.retry(ctx, "most recent", func() error {
		var err error
		last, err = s.candle.MostRecent(ctx, s.cfg.Symbol)
		if errors.Is(err, domain.ErrCandleNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})

	switch {
	case errors.Is(err, domain.ErrCandleNotFound):
		if track {
			s.setState(StateSeeding)
		}
		return s.seed(ctx)
	case err != nil:
		return err
	}

	if track {
		s.setState(StateGapFilling)
	}
	return s.gapFill(ctx, last.Time)
}

// seed loads the most recent SeedLimit candles into an empty store.
func (s *Synchronizer) seed(ctx context.Context) error {
	var stored int
	err := s.retry(ctx, "seed", func() error {
		cs, err := s.market.GetKlines(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.SeedLimit, time.Time{})
		if err != nil {
			return err
		}
		valid := s.validOnly(cs)
		if err := s.storePage(ctx, valid); err != nil {
			return err
		}
		stored = len(valid)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("store seeded", "candles", stored)
	return nil
}

// gapFill walks the exchange forward from the open time of the newest stored
// candle, one page at a time. Only the current page is held in memory.
// Every page waits on the pacer, so the first goes out at once and the rest
// are spaced by its interval.
//
// The loop stops on an empty page, on a page holding only the overlap candle
// at the cursor, or on a page that does not move the cursor forward.
func (s *Synchronizer) gapFill(ctx context.Context, from time.Time) error {
	cursor := from
	pages, fetched := 0, 0

	for {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}

		var page []entity.Candle
		err := s.retry(ctx, "gap-fill page", func() error {
			cs, err := s.market.GetKlines(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.PageLimit, cursor)
			if err != nil {
				return err
			}
			// The cursor only moves after the page is stored.
			if err := s.storePage(ctx, s.validOnly(cs)); err != nil {
				return err
			}
			page = cs
			return nil
		})
		if err != nil {
			return err
		}
		pages++

		if len(page) == 0 {
			break
		}
		last := page[len(page)-1].Time
		if len(page) == 1 && last.Equal(cursor) {
			break
		}
		if !last.After(cursor) {
			s.logger.Warn("gap-fill page did not advance, stopping", "cursor", cursor, "last", last, "candles", len(page))
			break
		}
		fetched += len(page)
		cursor = last
	}

	s.logger.Info("gap filled", "from", from, "to", cursor, "pages", pages, "candles", fetched)
	return nil
}

// storePage upserts a page. The write is detached from ctx so that a
// shutdown lets an in-flight write finish.
func (s *Synchronizer) storePage(ctx context.Context, cs []entity.Candle) error {
	if len(cs) == 0 {
		return nil
	}
	return s.candle.UpsertBatch(context.WithoutCancel(ctx), cs)
}

// validOnly drops and logs candles that fail validation.
func (s *Synchronizer) validOnly(cs []entity.Candle) []entity.Candle {
	valid := make([]entity.Candle, 0, len(cs))
	for _, c := range cs {
		if err := c.ValidateAligned(s.cfg.Period); err != nil {
			s.logger.Warn("rejecting invalid candle", "error", err)
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// follow keeps the live stream connected until ctx is done.
func (s *Synchronizer) follow(ctx context.Context) error {
	b := s.newBackOff()

	for {
		s.setState(StateStreaming)
		delivered := false
		err := s.stream.Connect(ctx, s.cfg.Symbol, s.cfg.Interval, func(c entity.Candle) {
			delivered = true
			s.onCandle(ctx, c)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			b.Reset()
		}

		s.setState(StateReconnecting)
		wait := b.NextBackOff()
		s.logger.Warn("kline stream lost", "error", err, "retry_in", wait)
		if err := sleep(ctx, wait); err != nil {
			return err
		}

		if s.cfg.ResyncOnReconnect {
			if err := s.catchUp(ctx, false); err != nil {
				return err
			}
		}
	}
}

// onCandle persists a live delivery, classifies the refreshed window and
// publishes the result. A candle that cannot be stored is not published; the
// next delivery for the same period supersedes it.
func (s *Synchronizer) onCandle(ctx context.Context, c entity.Candle) {
	if err := c.ValidateAligned(s.cfg.Period); err != nil {
		s.logger.Warn("rejecting invalid candle", "error", err)
		return
	}

	wctx := context.WithoutCancel(ctx)
	if err := s.candle.Upsert(wctx, c); err != nil {
		s.logger.Error("failed to store live candle", "time", c.Time, "error", err)
		return
	}

	// Missing periods are not synthesized. After an outage that gap-filling
	// could not recover, the window spans fewer periods than requested.
	window, err := s.candle.LastN(wctx, c.Symbol, s.cfg.Window)
	if err != nil {
		s.logger.Error("failed to load classification window", "time", c.Time, "error", err)
		return
	}
	reverse(window)

	regime := s.classifier.Classify(window)
	s.publisher.Publish(entity.MarketTick{Candle: c, Regime: regime})
}

func (s *Synchronizer) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.WithContext(s.newBackOff(), ctx)
	return backoff.RetryNotify(fn, b, func(err error, wait time.Duration) {
		s.logger.Warn("operation failed, retrying", "op", op, "error", err, "retry_in", wait)
	})
}

// newBackOff returns an exponential policy that never gives up.
func (s *Synchronizer) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitial
	b.MaxInterval = s.cfg.RetryMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
