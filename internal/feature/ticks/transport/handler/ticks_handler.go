// Package handler serves the live tick stream over WebSocket.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"spectator/internal/feature/candles/domain/entity"
	"spectator/internal/feature/ticks/domain"
	"spectator/internal/feature/ticks/usecase"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// TickBroadcaster is the registration side of the broadcaster.
type TickBroadcaster interface {
	Register(fn usecase.Subscriber) usecase.Handle
	Unregister(h usecase.Handle)
}

// TicksHandler upgrades requests to WebSocket connections that receive every
// published tick as a JSON text frame.
type TicksHandler struct {
	broadcaster TickBroadcaster
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

func NewTicksHandler(b TickBroadcaster, logger *slog.Logger) *TicksHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicksHandler{
		broadcaster: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream handles GET /ws/ticks. An optional ?symbol= limits the stream to one
// symbol. Client messages are read and discarded; the connection lives until
// either side closes it or a write fails.
func (h *TicksHandler) Stream(c *gin.Context) {
	symbol := strings.ToUpper(c.Query("symbol"))

	// On failure Upgrade has already replied with an HTTP error.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	remote := conn.RemoteAddr().String()

	id := h.broadcaster.Register(func(t entity.MarketTick) error {
		if symbol != "" && t.Candle.Symbol != symbol {
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(domain.NewTickMessage(t)); err != nil {
			// Unblocks the read loop below.
			_ = conn.Close()
			return fmt.Errorf("write tick to %s: %w", remote, err)
		}
		return nil
	})
	h.logger.Info("tick stream opened", "remote", remote, "subscriber", id, "symbol", symbol)

	done := make(chan struct{})
	go h.ping(conn, done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	h.broadcaster.Unregister(id)
	_ = conn.Close()
	h.logger.Info("tick stream closed", "remote", remote, "subscriber", id)
}

// ping keeps idle connections alive. WriteControl may run concurrently with
// the subscriber's writes.
func (h *TicksHandler) ping(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
