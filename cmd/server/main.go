package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"spectator/internal/app/di"
	"spectator/internal/app/router"
	"spectator/internal/config"
	candleshandler "spectator/internal/feature/candles/transport/handler"
	candlesusecase "spectator/internal/feature/candles/usecase"
	regimeusecase "spectator/internal/feature/regime/usecase"
	ticksadapters "spectator/internal/feature/ticks/adapters"
	tickshandler "spectator/internal/feature/ticks/transport/handler"
	ticksusecase "spectator/internal/feature/ticks/usecase"
	infradb "spectator/internal/platform/db"
	"spectator/internal/platform/logging"
	infraredis "spectator/internal/platform/redis"
	"spectator/internal/shared/ratelimiter"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.OpenDB(cfg.DB)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(ctx, cfg.Redis); err != nil {
		logger.Warn("redis unavailable, running without cache and relay", "error", err)
	} else if tmp != nil {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
	}

	// Repository
	store := di.NewCandleRepository(db, rdb, cfg.Period())

	// Usecase
	classifier := regimeusecase.NewClassifier(cfg.ClassifierParams(), logger)
	broadcaster := ticksusecase.NewBroadcaster(cfg.Broadcast.MailboxSize, logger)
	defer broadcaster.Close()
	if rdb != nil {
		relay := ticksadapters.NewRedisRelay(rdb, cfg.Broadcast.RedisChannelPrefix)
		broadcaster.Register(relay.Relay)
	}

	syncer := candlesusecase.NewSynchronizer(
		cfg.SyncParams(),
		di.NewMarket(cfg.Binance),
		di.NewStream(cfg.Binance, logger),
		store,
		classifier,
		broadcaster,
		ratelimiter.NewRateLimiter(cfg.Sync.PagePause),
		logger,
	)
	candlesUC := candlesusecase.NewCandlesUsecase(store, classifier, cfg.Sync.Window)

	// Handler
	r := router.NewRouter(logger,
		func() string { return syncer.State().String() },
		candleshandler.NewCandlesHandler(candlesUC),
		tickshandler.NewTicksHandler(broadcaster, logger),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := syncer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
