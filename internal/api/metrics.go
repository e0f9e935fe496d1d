package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fallbackDepth = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audfeed",
			Subsystem: "api",
			Name:      "fallback_attempts_total",
			Help:      "Requests that moved past the primary endpoint shape.",
		},
		[]string{"operation"},
	)

	csrfRefreshTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audfeed",
			Subsystem: "api",
			Name:      "csrf_refresh_total",
			Help:      "CSRF token refreshes triggered by a 403 response.",
		},
	)
)
