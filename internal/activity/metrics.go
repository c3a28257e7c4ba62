package activity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsTotal counts signals received while a session was being monitored.
	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_signals_total",
			Help: "Total number of interaction signals received by the activity monitor",
		},
		[]string{"signal"},
	)

	// Sweeps counts periodic liveness checks by result.
	Sweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_sweeps_total",
			Help: "Total number of activity monitor liveness sweeps by result",
		},
		[]string{"result"},
	)
)
