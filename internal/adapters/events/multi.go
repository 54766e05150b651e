package events

import (
	"context"
	"errors"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
)

// Multi publishes to every sink and joins their errors.
type Multi []ports.EventPublisher

func (m Multi) Publish(ctx context.Context, evs []domain.MonitoringTriggerEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
