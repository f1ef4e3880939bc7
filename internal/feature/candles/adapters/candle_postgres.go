package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spectator/internal/feature/candles/domain"
	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/candles/usecase"
)

// upsertBatchSize bounds the rows per INSERT statement.
const upsertBatchSize = 500

type candlePostgres struct {
	db *gorm.DB
}

var _ usecase.CandleRepository = (*candlePostgres)(nil)

// NewCandleRepository returns a gorm-backed CandleRepository. It is safe for
// concurrent use; per-key atomicity comes from INSERT ... ON CONFLICT.
func NewCandleRepository(db *gorm.DB) *candlePostgres {
	return &candlePostgres{db: db}
}

type CandleModel struct {
	Symbol   string    `gorm:"primaryKey;size:32"`
	OpenTime time.Time `gorm:"primaryKey;column:open_time"`

	Open   decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	High   decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	Low    decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	Close  decimal.Decimal `gorm:"type:numeric(38,18);not null"`
	Volume decimal.Decimal `gorm:"type:numeric(38,18);not null;default:0"`

	UpdatedAt time.Time
}

func (CandleModel) TableName() string {
	return "market_candles"
}

func toModel(e entity.Candle) CandleModel {
	return CandleModel{
		Symbol:   e.Symbol,
		OpenTime: e.Time.UTC(),
		Open:     e.Open,
		High:     e.High,
		Low:      e.Low,
		Close:    e.Close,
		Volume:   e.Volume,
	}
}

func toEntity(m CandleModel) entity.Candle {
	return entity.Candle{
		Symbol: m.Symbol,
		Time:   m.OpenTime.UTC(),
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
	}
}

func toEntities(rows []CandleModel) []entity.Candle {
	out := make([]entity.Candle, 0, len(rows))
	for _, m := range rows {
		out = append(out, toEntity(m))
	}
	return out
}

var upsertClause = clause.OnConflict{
	Columns:   []clause.Column{{Name: "symbol"}, {Name: "open_time"}},
	DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "updated_at"}),
}

func (r *candlePostgres) Upsert(ctx context.Context, c entity.Candle) error {
	return r.UpsertBatch(ctx, []entity.Candle{c})
}

// UpsertBatch writes all candles or, when any of them is invalid, none.
// Repeated keys within the batch collapse to the last occurrence, since
// PostgreSQL refuses to update one row twice in a single statement.
func (r *candlePostgres) UpsertBatch(ctx context.Context, candles []entity.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	ms := make([]CandleModel, 0, len(candles))
	seen := make(map[entity.Key]int, len(candles))
	for _, e := range candles {
		if err := e.Validate(); err != nil {
			return err
		}
		if i, ok := seen[e.Key()]; ok {
			ms[i] = toModel(e)
			continue
		}
		seen[e.Key()] = len(ms)
		ms = append(ms, toModel(e))
	}

	err := r.db.WithContext(ctx).Clauses(upsertClause).CreateInBatches(&ms, upsertBatchSize).Error
	return wrapErr("upsert", err)
}

func (r *candlePostgres) MostRecent(ctx context.Context, symbol string) (entity.Candle, error) {
	var rows []CandleModel
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("open_time DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return entity.Candle{}, wrapErr("most recent", err)
	}
	if len(rows) == 0 {
		return entity.Candle{}, domain.ErrCandleNotFound
	}
	return toEntity(rows[0]), nil
}

// LastN returns up to n candles, newest first.
func (r *candlePostgres) LastN(ctx context.Context, symbol string, n int) ([]entity.Candle, error) {
	var rows []CandleModel
	q := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("open_time DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrapErr("last n", err)
	}
	return toEntities(rows), nil
}

// Range returns candles opening within [start, end], oldest first.
// A positive limit keeps only the oldest limit candles.
func (r *candlePostgres) Range(ctx context.Context, symbol string, start, end time.Time, limit int) ([]entity.Candle, error) {
	var rows []CandleModel
	q := r.db.WithContext(ctx).
		Where("symbol = ? AND open_time >= ? AND open_time <= ?", symbol, start.UTC(), end.UTC()).
		Order("open_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrapErr("range", err)
	}
	return toEntities(rows), nil
}

// wrapErr names the failed operation and, for PostgreSQL server errors, the SQLSTATE.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("candle store %s: sqlstate %s: %w", op, pgErr.Code, err)
	}
	return fmt.Errorf("candle store %s: %w", op, err)
}
