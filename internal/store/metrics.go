package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stickyDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audfeed",
			Subsystem: "store",
			Name:      "sticky_drops_total",
			Help:      "Contradicting liked values dropped inside the stickiness window.",
		},
	)

	repaintsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audfeed",
			Subsystem: "store",
			Name:      "repaints_total",
			Help:      "View repaint hooks fired by state changes.",
		},
	)
)
