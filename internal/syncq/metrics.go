package syncq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tnepic",
			Subsystem: "outbox",
			Name:      "submissions_total",
			Help:      "Writes submitted for replication.",
		},
		[]string{"write"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tnepic",
			Subsystem: "outbox",
			Name:      "attempts_total",
			Help:      "Backend calls made for replicated writes, retries included.",
		},
		[]string{"write"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tnepic",
			Subsystem: "outbox",
			Name:      "failures_total",
			Help:      "Writes abandoned after a permanent error or too many attempts.",
		},
		[]string{"write"},
	)

	droppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tnepic",
			Subsystem: "outbox",
			Name:      "dropped_total",
			Help:      "Queued writes discarded because their session ended.",
		},
	)

	pendingWrites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tnepic",
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Writes waiting for a retry.",
		},
	)
)
