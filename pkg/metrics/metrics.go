package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by broker hook and outcome (count)",
		},
		[]string{"hook", "outcome"},
	)

	AuthDecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_ms",
			Help:    "Authorization decision duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"hook"},
	)

	RoutedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_messages_total",
			Help: "Messages handled by the router, by action and outcome (count)",
		},
		[]string{"action", "outcome"},
	)

	StatsWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_write_failures_total",
			Help: "Failed tenant/sub-scope counter writes (count)",
		},
	)

	BridgeStateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_state_transitions_total",
			Help: "External bridge state machine transitions (count)",
		},
		[]string{"state"},
	)

	BridgeMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_messages_total",
			Help: "Messages crossing the external bridge, by direction and outcome (count)",
		},
		[]string{"direction", "outcome"},
	)
)

func ObserveAuthDecision(hook string, duration time.Duration) {
	AuthDecisionDuration.WithLabelValues(hook).Observe(float64(duration.Milliseconds()))
}

func RegisterAuthzMetrics() {
	prometheus.MustRegister(
		AuthDecisionsTotal,
		AuthDecisionDuration,
		StatsWriteFailuresTotal,
	)
}

func RegisterRouterMetrics() {
	prometheus.MustRegister(RoutedMessagesTotal)
}

func RegisterBridgeMetrics() {
	prometheus.MustRegister(
		BridgeStateTransitionsTotal,
		BridgeMessagesTotal,
	)
}
