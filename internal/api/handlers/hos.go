package handlers

import (
	"hos-dispatch-service/internal/api/dto"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/services"
	"net/http"
)

// HOSHandler exposes the stateless rest advisor and compliance evaluator.
type HOSHandler struct {
	Config services.PlannerConfig
	Policy domain.RestPolicy
}

func (h *HOSHandler) RecommendRest(w http.ResponseWriter, r *http.Request) {
	var req dto.RestRecommendRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	speed := h.Config.AvgSpeedMph
	if req.AvgSpeedMph != 0 {
		speed = req.AvgSpeedMph
	}
	policy := h.Policy
	if req.Policy != nil {
		policy = *req.Policy
	}

	adv := services.NewRestAdvisor(h.Config.Thresholds, h.Config.Rules, speed, h.Config.LaborCostPerHour)
	rec, err := adv.Recommend(req.Driver, req.Opportunity, policy)
	if err != nil {
		writeServiceError(w, r, "recommend rest", err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// EvaluateCompliance applies any submitted duty events to the driver state
// before grading it.
func (h *HOSHandler) EvaluateCompliance(w http.ResponseWriter, r *http.Request) {
	var req dto.ComplianceRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	th := h.Config.Thresholds
	if req.Thresholds != nil {
		th = *req.Thresholds
		if err := th.Validate(); err != nil {
			writeServiceError(w, r, "evaluate compliance", err)
			return
		}
	}

	state := req.Driver
	if err := state.Validate(); err != nil {
		writeServiceError(w, r, "evaluate compliance", err)
		return
	}
	if len(req.Events) > 0 {
		var err error
		if state, err = services.Simulate(state, req.Events, h.Config.Rules); err != nil {
			writeServiceError(w, r, "evaluate compliance", err)
			return
		}
	}

	writeJSON(w, r, http.StatusOK, dto.ComplianceResponse{
		State:  state,
		Report: services.EvaluateCompliance(state, th),
	})
}
