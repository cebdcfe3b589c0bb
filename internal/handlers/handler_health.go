package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/client_records_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// getHealth godoc
// @Summary Liveness probe
// @Tags health
// @Produce plain
// @Success 200 {string} string "OK"
// @Router /health [get]
func getHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// newReadyHandler godoc
// @Summary Readiness probe
// @Description Checks records storage. Reports 503 while storage is unconfigured or unreachable.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health/ready [get]
func newReadyHandler(check ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "storage": "unconfigured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := check(ctx); err != nil {
			middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Readiness check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "storage": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": "ok"})
	}
}
