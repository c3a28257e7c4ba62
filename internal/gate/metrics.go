package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decisions counts gate verdicts per tier.
var Decisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gate_decisions_total",
		Help: "Total number of access gate decisions by tier and outcome",
	},
	[]string{"tier", "decision"},
)
