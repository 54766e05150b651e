package api

import (
	"hos-dispatch-service/internal/api/handlers"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the handlers the router mounts. The composition root builds them.
type Deps struct {
	Health  *handlers.HealthHandler
	Plans   *handlers.PlanHandler
	HOS     *handlers.HOSHandler
	Monitor *handlers.MonitorHandler
	Logger  *slog.Logger
}

// NewRouter wires HTTP handlers and returns an http.Handler.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	health := d.Health
	if health == nil {
		health = &handlers.HealthHandler{}
	}
	mux.HandleFunc("/health", health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	if d.Plans != nil {
		mux.HandleFunc("POST /plans", d.Plans.Plan)
		mux.HandleFunc("GET /plans/{assignmentID}", d.Plans.History)
	}
	if d.HOS != nil {
		mux.HandleFunc("POST /rest/recommend", d.HOS.RecommendRest)
		mux.HandleFunc("POST /compliance/evaluate", d.HOS.EvaluateCompliance)
	}
	if m := d.Monitor; m != nil {
		mux.HandleFunc("POST /monitor/tick", m.Tick)
		mux.HandleFunc("POST /assignments", m.Register)
		mux.HandleFunc("DELETE /assignments/{id}", m.Remove)
		mux.HandleFunc("GET /assignments/{id}/events", m.Events)
		mux.HandleFunc("POST /assignments/{id}/triggers/{type}/ack", m.Acknowledge)
		mux.HandleFunc("POST /telemetry/{assignmentID}", m.PushTelemetry)
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return requestIDMiddleware(loggingMiddleware(logger, mux))
}
