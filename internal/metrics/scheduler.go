package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// schedulerRunsTotal counts reconciliation job runs by job and result.
	// Labels:
	// - job: unlock | account_expiry | credential_expiry | cooldown_sweep
	// - result: ok | error
	schedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uam",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Reconciliation job runs by job and result.",
		},
		[]string{"job", "result"},
	)

	// schedulerAffectedTotal counts records mutated by reconciliation jobs.
	schedulerAffectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uam",
			Subsystem: "scheduler",
			Name:      "affected_records_total",
			Help:      "Records mutated by reconciliation jobs.",
		},
		[]string{"job"},
	)
)

// IncSchedulerRun records one job run.
func IncSchedulerRun(job, result string) {
	if result == "" {
		result = "ok"
	}
	schedulerRunsTotal.WithLabelValues(job, result).Inc()
}

// AddSchedulerAffected records how many rows a job run touched.
func AddSchedulerAffected(job string, n int) {
	if n <= 0 {
		return
	}
	schedulerAffectedTotal.WithLabelValues(job).Add(float64(n))
}
