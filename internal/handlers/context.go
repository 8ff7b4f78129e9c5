package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// clientMetadata captures the caller's address and user agent.
func clientMetadata(c *gin.Context) iauth.SessionMetadata {
	return iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// currentAccountID returns the authenticated account id set by middleware.Auth.
func currentAccountID(c *gin.Context) string {
	return c.GetString(middleware.CtxAccountIDKey)
}
