package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/staffhub/internal/handlers"
)

func registerAuditRoutes(admin *gin.RouterGroup, handler *handlers.AuditHandler) {
	admin.GET("/audit", handler.List)
}
