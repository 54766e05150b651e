package dto

import (
	"hos-dispatch-service/internal/domain"
	"time"
)

// PlanRequest plans an assignment from the vehicle's current location through its stops.
// DepartAt defaults to now; RestPolicy defaults to the dispatcher policy.
type PlanRequest struct {
	AssignmentID string                `json:"assignment_id"`
	Stops        []domain.Stop         `json:"stops"`
	Driver       domain.DriverHOSState `json:"driver"`
	Vehicle      domain.VehicleState   `json:"vehicle"`
	Priority     domain.Priority       `json:"priority"`
	DepartAt     *time.Time            `json:"depart_at"`
	RestPolicy   *domain.RestPolicy    `json:"rest_policy"`
	FuelStations []domain.FuelStation  `json:"fuel_stations"`
}

type PlanResponse struct {
	Plan *domain.RoutePlan `json:"plan"`
}

type PlanHistoryResponse struct {
	AssignmentID string              `json:"assignment_id"`
	Latest       int                 `json:"latest_version"`
	Versions     []*domain.RoutePlan `json:"versions"`
}
