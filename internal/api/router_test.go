package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/api"
	"github.com/charlesng35/staffhub/internal/app"
	"github.com/charlesng35/staffhub/internal/handlers/testutil"
)

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Dependencies{})
	require.ErrorContains(t, err, "config must be provided")

	_, err = api.NewRouter(api.Dependencies{Config: &app.Config{}})
	require.ErrorContains(t, err, "auth service must be provided")
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	for _, path := range []string{"/api/auth/me", "/api/employees", "/api/audit"} {
		w = env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w = env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "someone@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Metrics are disabled in the zero-value config used by the test env.
	w = env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MetricsEnabled(t *testing.T) {
	env := testutil.NewEnv(t, func(cfg *app.Config) {
		cfg.Monitoring.Prometheus.Enabled = true
		cfg.Monitoring.Prometheus.Endpoint = "internal-metrics"
	})

	env.Request(http.MethodGet, "/health", nil, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal-metrics", nil)
	env.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "staffhub_api_latency_seconds"))
}
