package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records session authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiamp_auth_attempts_total",
			Help: "Total number of session authentication attempts",
		},
		[]string{"result"},
	)

	// GateDecisions counts request-gating outcomes by route class and decision
	// (allow|login_redirect|pending_redirect|role_redirect|unauthorized|forbidden).
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiamp_gate_decisions_total",
			Help: "Total number of route gating decisions",
		},
		[]string{"class", "decision"},
	)

	// APIKeyChecks counts API key authentications by outcome (allowed|denied|unauthorized).
	APIKeyChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiamp_api_key_checks_total",
			Help: "Total number of API key authentication checks",
		},
		[]string{"result"},
	)

	// InviteRedemptions counts invite redemption attempts by outcome (success|conflict).
	InviteRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiamp_invite_redemptions_total",
			Help: "Total number of invite redemption attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aiamp_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aiamp_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
