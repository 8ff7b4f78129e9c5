package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in attempts by result (success|invalid_credentials|email_not_verified|pending_approval|rejected|error).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_auth_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"result"},
	)

	// SessionsIssued counts token pairs minted by the session issuer.
	SessionsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staffhub_auth_sessions_issued_total",
			Help: "Total number of access/refresh token pairs issued",
		},
	)

	// RefreshRotations counts refresh attempts by result (success|invalid|error).
	RefreshRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_auth_refresh_total",
			Help: "Total number of refresh token rotations",
		},
		[]string{"result"},
	)

	// TokenRedemptions counts verification token redemptions by purpose and result.
	TokenRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_verification_redemptions_total",
			Help: "Total number of verification token redemptions",
		},
		[]string{"purpose", "result"},
	)

	// ApprovalTransitions counts employee status changes by target status.
	ApprovalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_approval_transitions_total",
			Help: "Total number of employee approval state transitions",
		},
		[]string{"status"},
	)

	// Notifications counts outbound notifications by template and result (sent|failed).
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_notifications_total",
			Help: "Total number of dispatched notifications",
		},
		[]string{"template", "result"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_rate_limited_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"path"},
	)

	// MaintenanceRuns counts maintenance job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staffhub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
