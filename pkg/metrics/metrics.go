package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RefreshAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "civicvoice", Name: "session_refresh_total", Help: "Number of token refresh attempts by outcome."},
		[]string{"outcome"},
	)
	ForcedLogouts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "civicvoice", Name: "session_forced_logout_total", Help: "Number of system-initiated session terminations."},
	)
	AuthRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "civicvoice", Name: "request_auth_retry_total", Help: "Number of requests re-issued after a 401 refresh."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "civicvoice", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "civicvoice", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RefreshAttempts)
	reg.MustRegister(ForcedLogouts)
	reg.MustRegister(AuthRetries)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
