// Package metrics exposes the Prometheus gauges/counters the policy
// cache and gateway increment on the hot path.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PolicyCacheLookups counts resource-fingerprint lookups by result.
	PolicyCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bios",
		Subsystem: "policy_cache",
		Name:      "lookups_total",
		Help:      "Number of resource fingerprint lookups against the policy index.",
	}, []string{"result"})

	// CredentialLockEvents counts credential lock events per cert conf
	// and reason; unlocks are not counted.
	CredentialLockEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bios",
		Subsystem: "credential",
		Name:      "lock_events_total",
		Help:      "Number of credential lock transitions, by conf and reason.",
	}, []string{"conf_id", "reason"})

	// PropagationLagSeconds observes the delay between a mutation
	// commit and the corresponding cache rewrite.
	PropagationLagSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bios",
		Subsystem: "propagator",
		Name:      "lag_seconds",
		Help:      "Seconds between a C1/C2 mutation commit and its cache rewrite.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(PolicyCacheLookups, CredentialLockEvents, PropagationLagSeconds)
}
