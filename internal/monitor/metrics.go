package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hos_monitor_ticks_total",
		Help: "Monitor sweeps started",
	})

	assignmentEvalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hos_monitor_assignment_eval_seconds",
		Help:    "Time to fetch telemetry and evaluate triggers for one assignment",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	skippedInFlight = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hos_monitor_skipped_inflight_total",
		Help: "Assignments skipped because the previous tick was still running",
	})

	activeAssignments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hos_monitor_active_assignments",
		Help: "Assignments in the last sweep",
	})

	triggerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hos_trigger_events_total",
		Help: "Trigger events emitted, by type, severity and state",
	}, []string{"trigger", "severity", "state"})

	feedFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hos_telemetry_feed_failures_total",
		Help: "Telemetry fetches that failed or timed out, by feed",
	}, []string{"feed"})

	triggersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hos_triggers_skipped_total",
		Help: "Trigger evaluations skipped for missing telemetry, by trigger",
	}, []string{"trigger"})

	replans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hos_replans_total",
		Help: "Re-plan requests by outcome",
	}, []string{"result"})
)
