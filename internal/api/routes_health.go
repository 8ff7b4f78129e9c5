package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/staffhub/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, store handlers.Pinger) {
	health := handlers.Health(store)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
