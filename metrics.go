package audfeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audfeed",
			Name:      "mutations_enqueued_total",
			Help:      "Interaction mutations accepted into the shard executor.",
		},
		[]string{"op"},
	)

	mutationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audfeed",
			Name:      "mutation_failures_total",
			Help:      "Mutations whose async write failed for good and was given up.",
		},
		[]string{"op"},
	)
)
