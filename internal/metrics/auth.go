package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authOutcomesTotal counts authentication outcomes by result.
	// Labels:
	// - result: success | failure | rejected
	// - reason: ok | unknown_identity | wrong_secret | expired | disabled | locked | storage
	authOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uam",
			Subsystem: "auth",
			Name:      "outcomes_total",
			Help:      "Authentication outcomes by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// accountsLockedTotal counts accounts locked by the failed-attempt tracker.
	accountsLockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uam",
			Subsystem: "auth",
			Name:      "accounts_locked_total",
			Help:      "Accounts locked after exceeding the failed-attempt threshold.",
		},
	)

	// tokenRejectionsTotal counts JWT verification failures by kind.
	// Labels:
	// - kind: malformed | expired | signature
	tokenRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uam",
			Subsystem: "token",
			Name:      "rejections_total",
			Help:      "JWT verification failures by kind.",
		},
		[]string{"kind"},
	)
)

// IncAuthOutcome increments the auth outcome counter.
func IncAuthOutcome(result, reason string) {
	if result == "" {
		result = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	authOutcomesTotal.WithLabelValues(result, reason).Inc()
}

// IncAccountLocked increments the locked-account counter.
func IncAccountLocked() { accountsLockedTotal.Inc() }

// IncTokenRejected increments the token rejection counter.
func IncTokenRejected(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	tokenRejectionsTotal.WithLabelValues(kind).Inc()
}
