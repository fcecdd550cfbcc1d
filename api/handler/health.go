package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/jobs"
	"github.com/use-agent/shelfscan/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Status degrades once every running slot is taken.
func Health(store *jobs.Store, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := store.Stats()

		status := "healthy"
		if stats.MaxRunning > 0 && stats.Running >= stats.MaxRunning {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Jobs:    stats,
			Version: config.Version,
		})
	}
}
