package credential

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreErrors counts storage failures swallowed by the credential store.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_store_errors_total",
			Help: "Total number of credential storage failures degraded to logged-out",
		},
		[]string{"operation"},
	)

	// Expirations counts credentials cleared by the inactivity ceiling.
	Expirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_expirations_total",
			Help: "Total number of credentials cleared after the inactivity ceiling",
		},
	)
)
