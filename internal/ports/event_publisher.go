package ports

import (
	"context"
	"hos-dispatch-service/internal/domain"
)

// EventPublisher forwards trigger events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.MonitoringTriggerEvent) error
	Close() error
}
