package events

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"log/slog"
)

// LogPublisher writes events to the structured log; used when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, evs []domain.MonitoringTriggerEvent) error {
	for _, ev := range evs {
		p.log.Info("trigger",
			"event_id", ev.ID,
			"assignment_id", ev.AssignmentID,
			"trigger", ev.TriggerType,
			"severity", ev.Severity,
			"state", ev.State,
			"replan", ev.RequiresReplan,
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
