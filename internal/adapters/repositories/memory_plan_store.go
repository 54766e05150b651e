package repositories

import (
	"context"
	"errors"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"sync"
)

// MemoryPlanStore is the in-process PlanStore used when DATABASE_URL is unset.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string][]*domain.RoutePlan
}

func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[string][]*domain.RoutePlan)}
}

func (s *MemoryPlanStore) Append(ctx context.Context, plan *domain.RoutePlan) (*domain.RoutePlan, error) {
	if plan == nil || plan.AssignmentID == "" {
		return nil, errors.New("append plan: plan and assignment ID are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := plan.Clone()
	stored.Version = len(s.plans[plan.AssignmentID]) + 1
	s.plans[plan.AssignmentID] = append(s.plans[plan.AssignmentID], stored)
	return stored.Clone(), nil
}

func (s *MemoryPlanStore) Latest(_ context.Context, assignmentID string) (*domain.RoutePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.plans[assignmentID]
	if len(versions) == 0 {
		return nil, ports.ErrPlanNotFound
	}
	return versions[len(versions)-1].Clone(), nil
}

func (s *MemoryPlanStore) Versions(_ context.Context, assignmentID string) ([]*domain.RoutePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.plans[assignmentID]
	if len(versions) == 0 {
		return nil, ports.ErrPlanNotFound
	}
	out := make([]*domain.RoutePlan, len(versions))
	for i, p := range versions {
		out[i] = p.Clone()
	}
	return out, nil
}
