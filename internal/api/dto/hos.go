package dto

import (
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/services"
)

type RestRecommendRequest struct {
	Driver      domain.DriverHOSState  `json:"driver"`
	Opportunity domain.RestOpportunity `json:"opportunity"`
	Policy      *domain.RestPolicy     `json:"policy"`
	AvgSpeedMph float64                `json:"avg_speed_mph"`
}

// ComplianceRequest evaluates Driver, after applying Events when given.
type ComplianceRequest struct {
	Driver     domain.DriverHOSState `json:"driver"`
	Events     []domain.DutyEvent    `json:"events"`
	Thresholds *services.Thresholds  `json:"thresholds"`
}

type ComplianceResponse struct {
	State  domain.DriverHOSState   `json:"state"`
	Report domain.ComplianceReport `json:"report"`
}
