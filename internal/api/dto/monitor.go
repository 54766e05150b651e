package dto

import (
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/monitor"
	"time"
)

// TickRequest runs one monitoring pass. Without Assignments the registered ones are
// used; without Snapshots telemetry is fetched from the configured provider.
type TickRequest struct {
	Now         *time.Time                 `json:"now"`
	Assignments []domain.Assignment        `json:"assignments"`
	Snapshots   []domain.TelemetrySnapshot `json:"snapshots"`
}

type TickResponse struct {
	Now     time.Time                       `json:"now"`
	Events  []domain.MonitoringTriggerEvent `json:"events"`
	Replans []string                        `json:"replans"`
}

type AssignmentResponse struct {
	Assignment domain.Assignment `json:"assignment"`
}

type EventsResponse struct {
	AssignmentID string                          `json:"assignment_id"`
	Events       []domain.MonitoringTriggerEvent `json:"events"`
	Triggers     []monitor.TriggerStatus         `json:"triggers"`
}
