// Package handler serves readiness/liveness for Kubernetes, load balancers, and CI.
package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const pingTimeout = 2 * time.Second

// Pinger is the database connectivity probe (satisfied by *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler answers GET /healthz. A nil pinger reports healthy so the probe
// works in store-less setups (tests, worker).
type Handler struct {
	pinger Pinger
}

// NewHandler returns a health Handler probing pinger.
func NewHandler(pinger Pinger) *Handler {
	return &Handler{pinger: pinger}
}

// Check handles GET /healthz.
func (h *Handler) Check(c *gin.Context) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()
		if err := h.pinger.PingContext(ctx); err != nil {
			log.Printf("health: db ping: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
