package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/observability"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/event-test", func(c *gin.Context) {
		err := observability.PublishEvent(c.Request.Context(), "debug.test",
			observability.NewEnvelope("debug", "event_test", gin.H{"ok": true}),
			observability.BuildHeaders(requestIDFromContext(c), ""))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
