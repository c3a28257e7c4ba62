package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	// EventsPublished counts publish attempts by topic and result (ok, error).
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_published_total",
			Help: "Session lifecycle events handed to Kafka, by topic and result",
		},
		[]string{"topic", "result"},
	)

	// PublishDuration observes how long a synchronous write to the brokers took.
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_events_publish_duration_seconds",
			Help:    "Duration of Kafka writes for session events",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)
)
