package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/pkg/logger"
	"github.com/charlesng35/staffhub/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health returns a status payload useful for readiness checks. A failing
// store ping yields 503.
func Health(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			response.Success(c, http.StatusOK, gin.H{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logger.WithModule("health").Warn("store ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, response.Response{
				Success: false,
				Data:    gin.H{"status": "unavailable", "database": "down"},
			})
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "database": "up"})
	}
}
