// Command backfill seeds or gap-fills the candle store once and exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spectator/internal/app/di"
	"spectator/internal/config"
	candlesadapters "spectator/internal/feature/candles/adapters"
	candlesusecase "spectator/internal/feature/candles/usecase"
	regimeusecase "spectator/internal/feature/regime/usecase"
	infradb "spectator/internal/platform/db"
	"spectator/internal/platform/logging"
	"spectator/internal/shared/ratelimiter"
)

// Backfill retries failed pages indefinitely; this bounds a single run.
const runTimeout = 30 * time.Minute

func main() {
	if err := run(); err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := infradb.OpenDB(cfg.DB)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	store := candlesadapters.NewCandleRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	// Backfill neither streams nor publishes.
	syncer := candlesusecase.NewSynchronizer(
		cfg.SyncParams(),
		di.NewMarket(cfg.Binance),
		nil,
		store,
		regimeusecase.NewClassifier(cfg.ClassifierParams(), logger),
		nil,
		ratelimiter.NewRateLimiter(cfg.Sync.PagePause),
		logger,
	)
	if err := syncer.Backfill(ctx); err != nil {
		return err
	}

	last, err := store.MostRecent(ctx, cfg.Market.Symbol)
	if err != nil {
		return fmt.Errorf("read back newest candle: %w", err)
	}
	logger.Info("backfill ok", "symbol", last.Symbol, "newest", last.Time, "close", last.Close.String())
	return nil
}
