// Package metrics defines the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts login attempts by outcome
	// (success, invalid_credentials, account_disabled, error).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	// TokenValidationFailures counts rejected protected requests by reason
	// (missing, invalid).
	TokenValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "auth",
		Name:      "token_validation_failures_total",
		Help:      "Rejected protected requests by reason.",
	}, []string{"reason"})

	// TokensIssued counts issued session tokens.
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "auth",
		Name:      "tokens_issued_total",
		Help:      "Session tokens issued.",
	})

	// WorkspacesResolved counts workspace resolutions.
	WorkspacesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "workspace",
		Name:      "resolutions_total",
		Help:      "Workspace resolutions performed.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
