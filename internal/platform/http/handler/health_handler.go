// Package handler provides HTTP handlers for platform-level endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StateFunc reports the current synchronizer phase, e.g. "STREAMING".
type StateFunc func() string

// Health serves /healthz. The process answers as long as it is up; the
// synchronizer phase is reported alongside when state is non-nil.
// Responses are never cached.
func Health(state StateFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		switch c.Request.Method {
		case http.MethodHead:
			c.Status(http.StatusOK)
		case http.MethodOptions:
			c.Status(http.StatusNoContent)
		default:
			body := gin.H{"status": "ok"}
			if state != nil {
				body["sync_state"] = state()
			}
			c.JSON(http.StatusOK, body)
		}
	}
}
