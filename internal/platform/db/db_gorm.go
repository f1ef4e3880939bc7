// Package db opens the PostgreSQL connection used by the candle store.
package db

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	candleadapters "spectator/internal/feature/candles/adapters"
)

// Config holds the connection settings. The config package fills it from DB_* variables.
type Config struct {
	Host           string        `envconfig:"HOST" default:"localhost"`
	Port           string        `envconfig:"PORT" default:"5432"`
	User           string        `envconfig:"USER" default:"postgres"`
	Password       string        `envconfig:"PASSWORD"`
	Name           string        `envconfig:"NAME" default:"spectator"`
	SSLMode        string        `envconfig:"SSLMODE" default:"disable"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"60s"`
	RunMigrations  bool          `envconfig:"RUN_MIGRATIONS" default:"true"`
}

// BuildDSN returns a postgres:// URL for cfg. Credentials are escaped.
func BuildDSN(cfg Config) string {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	q.Set("TimeZone", "UTC")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

// ConnectWithRetry calls open with exponential backoff until it succeeds or
// timeout has elapsed.
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = timeout
	b.Reset()

	var db *gorm.DB
	err := backoff.RetryNotify(func() error {
		var err error
		db, err = open(dsn)
		return err
	}, b, func(err error, wait time.Duration) {
		slog.Warn("DB connect failed, retrying", "error", err, "retry_in", wait)
	})
	if err != nil {
		return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
	}
	return db, nil
}

// OpenDB connects to PostgreSQL and, when enabled, migrates the candle table.
func OpenDB(cfg Config) (*gorm.DB, error) {
	db, err := ConnectWithRetry(BuildDSN(cfg), cfg.ConnectTimeout, func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	})
	if err != nil {
		return nil, err
	}
	slog.Info("DB connection successful", "host", cfg.Host, "name", cfg.Name)

	if cfg.RunMigrations {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&candleadapters.CandleModel{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
