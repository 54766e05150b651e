package ports

import (
	"context"
	"errors"
	"hos-dispatch-service/internal/domain"
)

var ErrPlanNotFound = errors.New("plan not found")

// PlanStore keeps every version of an assignment's plan. Versions are never rewritten.
type PlanStore interface {
	// Append stores plan as the next version for its assignment and returns the
	// stored copy with Version set. Concurrent appends never share a version.
	Append(ctx context.Context, plan *domain.RoutePlan) (*domain.RoutePlan, error)
	// Latest returns the highest version, or ErrPlanNotFound.
	Latest(ctx context.Context, assignmentID string) (*domain.RoutePlan, error)
	// Versions returns all versions in ascending order.
	Versions(ctx context.Context, assignmentID string) ([]*domain.RoutePlan, error)
}
