package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts session operations by outcome.
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_operations_total",
			Help: "Total number of session operations by result",
		},
		[]string{"operation", "result"},
	)

	// Logouts counts transitions to unauthenticated by reason.
	Logouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logouts_total",
			Help: "Total number of session logouts by reason",
		},
		[]string{"reason"},
	)

	// Restores counts startup restoration outcomes.
	Restores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_restores_total",
			Help: "Total number of session restorations by outcome",
		},
		[]string{"outcome"},
	)
)
