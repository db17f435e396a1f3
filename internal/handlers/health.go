package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/cache"
	"messaging-service/internal/rabbitmq"
)

// HealthHandler reports process uptime and dependency connectivity.
type HealthHandler struct {
	db        *sqlx.DB
	transport rabbitmq.Transport
	store     cache.Store
	startedAt time.Time
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(db *sqlx.DB, transport rabbitmq.Transport, store cache.Store) *HealthHandler {
	return &HealthHandler{db: db, transport: transport, store: store, startedAt: time.Now()}
}

// Healthz is the liveness endpoint.
func (h *HealthHandler) Healthz(c *gin.Context) {
	storeUp := h.db.PingContext(c.Request.Context()) == nil
	cacheUp := h.store.Ping(c.Request.Context()) == nil

	status := http.StatusOK
	if !storeUp {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"store":          storeUp,
		"broker":         h.transport.Healthy(),
		"cache":          cacheUp,
	})
}
