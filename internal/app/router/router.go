package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	candleshandler "spectator/internal/feature/candles/transport/handler"
	tickshandler "spectator/internal/feature/ticks/transport/handler"
	"spectator/internal/platform/http/handler"
)

func NewRouter(logger *slog.Logger, state handler.StateFunc, candles *candleshandler.CandlesHandler,
	ticks *tickshandler.TicksHandler) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// liveness, no dependencies checked
	health := handler.Health(state)
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	r.OPTIONS("/healthz", health)

	r.GET("/candles/:symbol", candles.GetCandlesHandler)
	r.GET("/regime/:symbol", candles.GetRegimeHandler)
	r.GET("/ws/ticks", ticks.Stream)

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
