package events

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"sync"
)

// EventLog keeps the most recent events per assignment for the API.
type EventLog struct {
	limit int

	mu sync.RWMutex
	m  map[string][]domain.MonitoringTriggerEvent
}

func NewEventLog(limitPerAssignment int) *EventLog {
	if limitPerAssignment <= 0 {
		limitPerAssignment = 500
	}
	return &EventLog{limit: limitPerAssignment, m: make(map[string][]domain.MonitoringTriggerEvent)}
}

func (l *EventLog) Publish(_ context.Context, evs []domain.MonitoringTriggerEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range evs {
		list := append(l.m[ev.AssignmentID], ev)
		if len(list) > l.limit {
			list = list[len(list)-l.limit:]
		}
		l.m[ev.AssignmentID] = list
	}
	return nil
}

// List returns the assignment's events, oldest first.
func (l *EventLog) List(assignmentID string) []domain.MonitoringTriggerEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.m[assignmentID]
	out := make([]domain.MonitoringTriggerEvent, len(src))
	copy(out, src)
	return out
}

func (l *EventLog) Forget(assignmentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, assignmentID)
}

func (l *EventLog) Close() error { return nil }
