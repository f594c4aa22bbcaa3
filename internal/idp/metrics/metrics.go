// Package metrics registers the core's Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idp_auth_attempts_total",
			Help: "Authentication attempts by zone, origin, and outcome.",
		},
		[]string{"zone", "origin", "outcome"},
	)

	lockoutsEngaged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idp_lockouts_engaged_total",
			Help: "Lockouts engaged by zone.",
		},
		[]string{"zone"},
	)

	tokensMinted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idp_tokens_minted_total",
			Help: "Access tokens minted.",
		},
	)

	tokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idp_token_verifications_total",
			Help: "Token verifications by result.",
		},
		[]string{"result"},
	)

	providerRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idp_provider_refreshes_total",
			Help: "Provisioning refresh signals applied to the dispatcher.",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more
// than once; only the first call registers.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			authAttempts,
			lockoutsEngaged,
			tokensMinted,
			tokenVerifications,
			providerRefreshes,
		)
	})
}

func ObserveAttempt(zone, origin, outcome string) {
	authAttempts.WithLabelValues(zone, origin, outcome).Inc()
}

func ObserveLockout(zone string) {
	lockoutsEngaged.WithLabelValues(zone).Inc()
}

func ObserveMint() {
	tokensMinted.Inc()
}

func ObserveVerification(result string) {
	tokenVerifications.WithLabelValues(result).Inc()
}

func ObserveRefresh() {
	providerRefreshes.Inc()
}
