package repositories

import (
	"context"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"slices"
	"strings"
	"sync"
)

// AssignmentRegistry holds the assignments under active monitoring.
type AssignmentRegistry struct {
	mu sync.RWMutex
	m  map[string]domain.Assignment
}

func NewAssignmentRegistry() *AssignmentRegistry {
	return &AssignmentRegistry{m: make(map[string]domain.Assignment)}
}

func validateAssignment(a domain.Assignment) error {
	if strings.TrimSpace(a.ID) == "" {
		return domain.NewValidationError("assignment.id", "must be set")
	}
	if len(a.Stops) == 0 {
		return domain.NewValidationError("assignment.stops", "at least one stop is required")
	}
	for _, s := range a.Stops {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if err := a.Driver.Validate(); err != nil {
		return err
	}
	if err := a.Vehicle.Validate(); err != nil {
		return err
	}
	if a.Priority != "" && !a.Priority.Valid() {
		return domain.NewValidationError("assignment.priority", "unknown priority %q", a.Priority)
	}
	if a.CompletedStops < 0 || a.CompletedStops > len(a.Stops) {
		return domain.NewValidationError("assignment.completed_stops", "must be between 0 and %d", len(a.Stops))
	}
	return nil
}

// Upsert registers or replaces an assignment.
func (r *AssignmentRegistry) Upsert(a domain.Assignment) error {
	if err := validateAssignment(a); err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[a.ID] = a
	return nil
}

// Remove stops monitoring an assignment. It reports whether it was registered.
func (r *AssignmentRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[id]
	delete(r.m, id)
	return ok
}

// SetPlan records the latest plan version on the assignment.
func (r *AssignmentRegistry) SetPlan(id string, plan *domain.RoutePlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.m[id]
	if !ok {
		return fmt.Errorf("set plan %s: %w", id, ports.ErrAssignmentNotFound)
	}
	if a.Plan != nil && plan != nil && plan.Version < a.Plan.Version {
		return nil
	}
	a.Plan = plan.Clone()
	r.m[id] = a
	return nil
}

// Active returns all assignments ordered by ID.
func (r *AssignmentRegistry) Active(ctx context.Context) ([]domain.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Assignment, 0, len(r.m))
	for _, a := range r.m {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.Assignment) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *AssignmentRegistry) Get(_ context.Context, id string) (domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.m[id]
	if !ok {
		return domain.Assignment{}, fmt.Errorf("get assignment %s: %w", id, ports.ErrAssignmentNotFound)
	}
	return a, nil
}

// IsNotFound reports whether err means the assignment is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ports.ErrAssignmentNotFound) || errors.Is(err, ports.ErrPlanNotFound)
}
