package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tnepic",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Live client sessions.",
	})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tnepic",
		Subsystem: "sessions",
		Name:      "auth_events_total",
		Help:      "Backend session-change events fanned out to sessions.",
	}, []string{"type"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tnepic",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Open websocket connections.",
	})

	pushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tnepic",
		Subsystem: "push",
		Name:      "notifications_total",
		Help:      "Push notifications by outcome.",
	}, []string{"outcome"})
)
