package domain

import "time"

type TriggerCategory string

const (
	CategoryHOS     TriggerCategory = "hos"
	CategoryRoute   TriggerCategory = "route"
	CategoryDriver  TriggerCategory = "driver"
	CategoryFuel    TriggerCategory = "fuel"
	CategoryDock    TriggerCategory = "dock"
	CategoryWeather TriggerCategory = "weather"
)

func (c TriggerCategory) Valid() bool {
	switch c {
	case CategoryHOS, CategoryRoute, CategoryDriver, CategoryFuel, CategoryDock, CategoryWeather:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank zero.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

// TriggerState is the lifecycle of one (assignment, trigger type) pair.
type TriggerState string

const (
	TriggerUnfired      TriggerState = "unfired"
	TriggerFired        TriggerState = "fired"
	TriggerAcknowledged TriggerState = "acknowledged"
	TriggerAutoResolved TriggerState = "auto_resolved"
	TriggerEscalated    TriggerState = "escalated"
	TriggerResolved     TriggerState = "resolved"
)

// Active reports whether the condition is currently considered open.
func (s TriggerState) Active() bool {
	return s == TriggerFired || s == TriggerAcknowledged || s == TriggerEscalated
}

// MonitoringTriggerEvent is emitted once per firing and never mutated.
type MonitoringTriggerEvent struct {
	ID             string          `json:"id"`
	AssignmentID   string          `json:"assignment_id"`
	TriggerType    string          `json:"trigger_type"`
	Category       TriggerCategory `json:"category"`
	Severity       Severity        `json:"severity"`
	Params         map[string]any  `json:"params,omitempty"`
	RequiresReplan bool            `json:"requires_replan"`
	State          TriggerState    `json:"state"`
	EmittedAt      time.Time       `json:"emitted_at"`
}
