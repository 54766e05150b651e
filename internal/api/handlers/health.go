package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler is a liveness check. When Ping is set its failure reports the
// service as degraded with a 503.
type HealthHandler struct {
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			loggerOr(h.Logger).Warn("health check failed", "err", err)
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
