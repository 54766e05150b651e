package ports

import (
	"context"
	"errors"
	"hos-dispatch-service/internal/domain"
)

var ErrAssignmentNotFound = errors.New("assignment not found")

// AssignmentSource lists the assignments the monitor should watch.
type AssignmentSource interface {
	Active(ctx context.Context) ([]domain.Assignment, error)
	Get(ctx context.Context, id string) (domain.Assignment, error)
}
