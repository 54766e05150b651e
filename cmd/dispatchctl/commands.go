package main

import (
	"fmt"
	"hos-dispatch-service/internal/adapters/cooldown"
	"hos-dispatch-service/internal/adapters/distance"
	"hos-dispatch-service/internal/adapters/repositories"
	"hos-dispatch-service/internal/api/dto"
	"hos-dispatch-service/internal/config"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/monitor"
	"hos-dispatch-service/internal/platform/logging"
	"hos-dispatch-service/internal/ports"
	"hos-dispatch-service/internal/services"
	"time"

	"github.com/spf13/cobra"
)

func newPlanCmd(opts *options) *cobra.Command {
	var requestPath, legsPath, departAt string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a segment plan for one assignment",
		Long: `Build a segment plan for one assignment.

Legs come from --legs (a JSON array of {from, to, meters, seconds}) when given,
otherwise from OpenRouteService when ORS_API_KEY is set, otherwise from
great-circle estimates between coordinates.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.PlanRequest
			if err := readJSON(cmd, requestPath, &req); err != nil {
				return err
			}
			provider, err := planProvider(cmd, legsPath, opts.policy.Planner)
			if err != nil {
				return err
			}

			depart := time.Now().UTC()
			if req.DepartAt != nil {
				depart = *req.DepartAt
			}
			if departAt != "" {
				if depart, err = time.Parse(time.RFC3339, departAt); err != nil {
					return fmt.Errorf("--depart: %w", err)
				}
			}
			policy := opts.policy.RestPolicy
			if req.RestPolicy != nil {
				policy = *req.RestPolicy
			}

			plan, err := services.PlanRoute(cmd.Context(), services.PlanRouteRequest{
				AssignmentID: req.AssignmentID,
				Stops:        req.Stops,
				Driver:       req.Driver,
				Vehicle:      req.Vehicle,
				Priority:     req.Priority,
				DepartAt:     depart,
				RestPolicy:   policy,
				FuelStations: req.FuelStations,
				Config:       opts.policy.Planner,
			}, provider, repositories.NewMemoryPlanStore())
			if err != nil {
				return err
			}
			return writeJSON(cmd, plan)
		},
	}
	cmd.Flags().StringVarP(&requestPath, "request", "f", "-", "plan request JSON file")
	cmd.Flags().StringVar(&legsPath, "legs", "", "static legs JSON file")
	cmd.Flags().StringVar(&departAt, "depart", "", "departure time (RFC 3339), overrides the request")
	return cmd
}

func planProvider(cmd *cobra.Command, legsPath string, planner services.PlannerConfig) (ports.DistanceProvider, error) {
	if legsPath != "" {
		var legs []distance.StaticLeg
		if err := readJSON(cmd, legsPath, &legs); err != nil {
			return nil, err
		}
		p := distance.NewStaticProvider(legs)
		p.Symmetric = true
		return p, nil
	}
	if key := config.Get("ORS_API_KEY", ""); key != "" {
		return distance.NewORSDistanceProvider(key, logging.Discard())
	}
	return distance.NewHaversineProvider(1.2, planner.AvgSpeedMph), nil
}

func newAdviseCmd(opts *options) *cobra.Command {
	var requestPath string
	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Recommend a rest for a driver at an upcoming stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.RestRecommendRequest
			if err := readJSON(cmd, requestPath, &req); err != nil {
				return err
			}
			planner := opts.policy.Planner
			speed := planner.AvgSpeedMph
			if req.AvgSpeedMph != 0 {
				speed = req.AvgSpeedMph
			}
			policy := opts.policy.RestPolicy
			if req.Policy != nil {
				policy = *req.Policy
			}

			adv := services.NewRestAdvisor(planner.Thresholds, planner.Rules, speed, planner.LaborCostPerHour)
			rec, err := adv.Recommend(req.Driver, req.Opportunity, policy)
			if err != nil {
				return err
			}
			return writeJSON(cmd, rec)
		},
	}
	cmd.Flags().StringVarP(&requestPath, "request", "f", "-", "rest request JSON file")
	return cmd
}

func newEvaluateCmd(opts *options) *cobra.Command {
	var requestPath string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Apply duty events to a driver and grade the result against the HOS limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.ComplianceRequest
			if err := readJSON(cmd, requestPath, &req); err != nil {
				return err
			}
			th := opts.policy.Thresholds()
			if req.Thresholds != nil {
				th = *req.Thresholds
				if err := th.Validate(); err != nil {
					return err
				}
			}
			state, err := services.Simulate(req.Driver, req.Events, opts.policy.Planner.Rules)
			if err != nil {
				return err
			}
			return writeJSON(cmd, dto.ComplianceResponse{State: state, Report: services.EvaluateCompliance(state, th)})
		},
	}
	cmd.Flags().StringVarP(&requestPath, "request", "f", "-", "compliance request JSON file")
	return cmd
}

func newTickCmd(opts *options) *cobra.Command {
	var assignmentsPath, snapshotsPath, at string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one monitor pass over assignments and telemetry snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			var assignments []domain.Assignment
			if err := readJSON(cmd, assignmentsPath, &assignments); err != nil {
				return err
			}
			snapshots := map[string]domain.TelemetrySnapshot{}
			if snapshotsPath != "" {
				var list []domain.TelemetrySnapshot
				if err := readJSON(cmd, snapshotsPath, &list); err != nil {
					return err
				}
				for _, s := range list {
					snapshots[s.AssignmentID] = s
				}
			}
			now := time.Now().UTC()
			if at != "" {
				var err error
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--now: %w", err)
				}
			}

			planner := opts.policy.Planner
			catalog, err := monitor.DefaultCatalog(opts.policy.Triggers)
			if err != nil {
				return err
			}
			mon := monitor.NewMonitor(catalog, cooldown.NewMemoryStore(), planner.Thresholds,
				services.NewRestAdvisor(planner.Thresholds, planner.Rules, planner.AvgSpeedMph, planner.LaborCostPerHour),
				logging.Discard())

			evs, err := mon.RunTick(cmd.Context(), assignments, snapshots, now)
			if err != nil {
				return err
			}
			return writeJSON(cmd, dto.TickResponse{Now: now, Events: evs, Replans: replanIDs(evs)})
		},
	}
	cmd.Flags().StringVarP(&assignmentsPath, "assignments", "a", "", "assignments JSON array")
	cmd.Flags().StringVarP(&snapshotsPath, "snapshots", "s", "", "telemetry snapshots JSON array")
	cmd.Flags().StringVar(&at, "now", "", "evaluation time (RFC 3339)")
	_ = cmd.MarkFlagRequired("assignments")
	return cmd
}

// replanIDs lists, in event order, the assignments with a re-plan reason.
func replanIDs(evs []domain.MonitoringTriggerEvent) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, ev := range evs {
		if ev.RequiresReplan && !seen[ev.AssignmentID] {
			seen[ev.AssignmentID] = true
			out = append(out, ev.AssignmentID)
		}
	}
	return out
}
