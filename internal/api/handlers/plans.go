package handlers

import (
	"errors"
	"hos-dispatch-service/internal/api/dto"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/monitor"
	"hos-dispatch-service/internal/ports"
	"hos-dispatch-service/internal/services"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type PlanHandler struct {
	Provider ports.DistanceProvider
	Store    ports.PlanStore
	Config   services.PlannerConfig
	Policy   domain.RestPolicy
	// Recorder, when set, attaches new plans to registered assignments.
	Recorder monitor.PlanRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Plan builds and stores the next plan version for an assignment.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	depart := h.now()
	if req.DepartAt != nil {
		depart = *req.DepartAt
	}
	policy := h.Policy
	if req.RestPolicy != nil {
		policy = *req.RestPolicy
	}

	plan, err := services.PlanRoute(r.Context(), services.PlanRouteRequest{
		AssignmentID: req.AssignmentID,
		Stops:        req.Stops,
		Driver:       req.Driver,
		Vehicle:      req.Vehicle,
		Priority:     req.Priority,
		DepartAt:     depart,
		RestPolicy:   policy,
		FuelStations: req.FuelStations,
		Config:       h.Config,
	}, h.Provider, h.Store)
	if err != nil {
		writeServiceError(w, r, "plan route", err)
		return
	}

	if h.Recorder != nil {
		if err := h.Recorder.SetPlan(plan.AssignmentID, plan); err != nil && !errors.Is(err, ports.ErrAssignmentNotFound) {
			loggerOr(h.Logger).Warn("record plan", "assignment_id", plan.AssignmentID, "version", plan.Version, "err", err)
		}
	}
	writeJSON(w, r, http.StatusCreated, dto.PlanResponse{Plan: plan})
}

// History returns every stored version, or only ?version=N.
func (h *PlanHandler) History(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assignmentID")

	versions, err := h.Store.Versions(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "list plan versions", err)
		return
	}

	res := dto.PlanHistoryResponse{AssignmentID: id, Versions: versions}
	if len(versions) > 0 {
		res.Latest = versions[len(versions)-1].Version
	}

	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, r, http.StatusBadRequest, "version must be a positive integer")
			return
		}
		var picked []*domain.RoutePlan
		for _, p := range versions {
			if p.Version == v {
				picked = append(picked, p)
			}
		}
		if len(picked) == 0 {
			writeError(w, r, http.StatusNotFound, "plan version not found")
			return
		}
		res.Versions = picked
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *PlanHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}
