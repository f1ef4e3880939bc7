// Package handler provides the HTTP handlers of the candles feature.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spectator/internal/feature/candles/domain"
	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/candles/transport/http/dto"
	"spectator/internal/feature/candles/usecase"
)

// CandlesUsecase is the read side of the candle store.
// Following Go convention, the interface is defined by its consumer.
type CandlesUsecase interface {
	GetCandles(ctx context.Context, symbol string, limit int) ([]entity.Candle, error)
	GetRange(ctx context.Context, symbol string, start, end time.Time) ([]entity.Candle, error)
	CurrentRegime(ctx context.Context, symbol string) (entity.MarketTick, error)
}

// CandlesHandler serves stored candles and the current regime.
type CandlesHandler struct {
	uc CandlesUsecase
}

func NewCandlesHandler(uc CandlesUsecase) *CandlesHandler {
	return &CandlesHandler{uc: uc}
}

// GetCandlesHandler returns candles oldest first, either the newest `limit`
// or those opening within [start, end]. A range response holds at most 5000
// candles counted from start.
//
// Examples:
// GET /candles/BTCUSDT?limit=200
// GET /candles/BTCUSDT?start=2024-03-01T00:00:00Z&end=1709337600000
func (h *CandlesHandler) GetCandlesHandler(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	startStr, hasStart := c.GetQuery("start")
	endStr, hasEnd := c.GetQuery("end")

	var (
		candles []entity.Candle
		err     error
	)
	switch {
	case hasStart || hasEnd:
		if !hasStart || !hasEnd {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "start and end must be given together"})
			return
		}
		start, perr := parseTime(startStr)
		if perr != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "start: " + perr.Error()})
			return
		}
		end, perr := parseTime(endStr)
		if perr != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "end: " + perr.Error()})
			return
		}
		candles, err = h.uc.GetRange(c.Request.Context(), symbol, start, end)
	default:
		// Unparsable limits become 0 and fall back to the usecase default.
		limit, _ := strconv.Atoi(c.Query("limit"))
		candles, err = h.uc.GetCandles(c.Request.Context(), symbol, limit)
	}

	if err != nil {
		if errors.Is(err, usecase.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.NewCandleResponses(candles))
}

// GetRegimeHandler classifies the stored window of a symbol.
//
// GET /regime/BTCUSDT
func (h *CandlesHandler) GetRegimeHandler(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	tick, err := h.uc.CurrentRegime(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrCandleNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: fmt.Sprintf("no candles stored for %s", symbol)})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.NewRegimeResponse(tick))
}

// parseTime accepts RFC 3339 or Unix epoch milliseconds.
func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or epoch milliseconds, got %q", s)
	}
	return t.UTC(), nil
}
