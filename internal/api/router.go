package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/staffhub/internal/app"
	"github.com/charlesng35/staffhub/internal/handlers"
	"github.com/charlesng35/staffhub/internal/middleware"
	"github.com/charlesng35/staffhub/internal/services"
)

// Dependencies bundles everything the router needs to mount handlers.
type Dependencies struct {
	Config    *app.Config
	Auth      *services.AuthService
	Employees *services.EmployeeService
	Audit     *services.AuditService
	Tokens    middleware.AccessTokenValidator
	Health    handlers.Pinger
	// RateStore backs the auth rate limiter; nil selects an in-memory store.
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("router: config must be provided")
	case deps.Auth == nil:
		return nil, errors.New("router: auth service must be provided")
	case deps.Employees == nil:
		return nil, errors.New("router: employee service must be provided")
	case deps.Audit == nil:
		return nil, errors.New("router: audit service must be provided")
	case deps.Tokens == nil:
		return nil, errors.New("router: access token validator must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics())

	registerHealthRoutes(r, deps.Health)
	registerMetricsRoutes(r, deps.Config.Monitoring)

	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	limit := deps.Config.RateLimit
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}
	rateLimit := middleware.RateLimitWithStore(rateStore, limit.Requests, limit.Window)

	requireAuth := middleware.Auth(deps.Tokens)
	api := r.Group("/api")

	registerAuthRoutes(api, authRouteDeps{
		Handler:     handlers.NewAuthHandler(deps.Auth),
		RequireAuth: requireAuth,
		RateLimit:   rateLimit,
	})

	admin := api.Group("")
	admin.Use(requireAuth, middleware.RequireRole(adminRole))
	registerEmployeeRoutes(admin, handlers.NewEmployeeHandler(deps.Employees, deps.Auth))
	registerAuditRoutes(admin, handlers.NewAuditHandler(deps.Audit))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
