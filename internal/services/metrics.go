package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	plansBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hos_plans_built_total",
		Help: "Route plans built and stored, by feasibility",
	}, []string{"feasible"})

	planDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hos_plan_route_duration_seconds",
		Help:    "Time to resolve legs, build and store a plan",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	})

	legLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hos_leg_lookups_total",
		Help: "Distance lookups made while planning, by result",
	}, []string{"result"})
)
