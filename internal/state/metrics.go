package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tripsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tnepic",
		Subsystem: "trips",
		Name:      "started_total",
		Help:      "Trips started.",
	})
	tripsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tnepic",
		Subsystem: "trips",
		Name:      "completed_total",
		Help:      "Trips completed.",
	})
	tripsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tnepic",
		Subsystem: "trips",
		Name:      "cancelled_total",
		Help:      "Trips cancelled.",
	})
	levelsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tnepic",
		Subsystem: "trips",
		Name:      "levels_completed_total",
		Help:      "AR levels completed.",
	})
)
