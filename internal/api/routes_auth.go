package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/staffhub/internal/handlers"
)

type authRouteDeps struct {
	Handler     *handlers.AuthHandler
	RequireAuth gin.HandlerFunc
	RateLimit   gin.HandlerFunc
}

func registerAuthRoutes(api *gin.RouterGroup, deps authRouteDeps) {
	public := api.Group("/auth")
	public.Use(deps.RateLimit)
	{
		public.POST("/signup", deps.Handler.SignUp)
		public.POST("/login", deps.Handler.Login)
		public.GET("/confirm/:token", deps.Handler.ConfirmEmail)
		public.POST("/confirm/:token", deps.Handler.ConfirmEmail)
		public.POST("/resend-confirmation", deps.Handler.ResendConfirmation)
		public.POST("/refresh", deps.Handler.Refresh)
		public.POST("/forgot-password", deps.Handler.ForgotPassword)
		public.POST("/reset-password/:token", deps.Handler.ResetPassword)
	}

	protected := api.Group("/auth")
	protected.Use(deps.RequireAuth)
	{
		protected.POST("/signout", deps.Handler.SignOut)
		protected.PUT("/update-password", deps.Handler.UpdatePassword)
		protected.GET("/me", deps.Handler.Me)
	}
}
