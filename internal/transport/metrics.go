package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	duplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audfeed",
		Subsystem: "transport",
		Name:      "duplicate_events_total",
		Help:      "Events suppressed because the same fingerprint arrived through another channel.",
	})

	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audfeed",
		Subsystem: "transport",
		Name:      "socket_connects_total",
		Help:      "Successful socket connections, including the initial dial.",
	})

	relayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audfeed",
		Subsystem: "transport",
		Name:      "relayed_events_total",
		Help:      "Socket events re-published onto the session bus.",
	})
)
