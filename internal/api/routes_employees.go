package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/staffhub/internal/handlers"
	"github.com/charlesng35/staffhub/internal/models"
)

const adminRole = models.RoleAdmin

func registerEmployeeRoutes(admin *gin.RouterGroup, handler *handlers.EmployeeHandler) {
	employees := admin.Group("/employees")
	{
		employees.GET("", handler.List)
		employees.GET("/:id", handler.Get)
		employees.PATCH("/:id", handler.Update)
		employees.POST("/:id/approve", handler.Approve)
		employees.POST("/:id/reject", handler.Reject)
	}
}
