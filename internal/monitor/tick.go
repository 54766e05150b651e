package monitor

import (
	"context"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"hos-dispatch-service/internal/services"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Monitor evaluates the trigger catalog against assignments. It keeps the
// trigger state machine but no clock: every call gets now explicitly.
type Monitor struct {
	catalog    *Catalog
	tracker    *Tracker
	cooldown   ports.CooldownStore
	thresholds services.Thresholds
	advisor    *services.RestAdvisor
	log        *slog.Logger

	// NewID generates event IDs.
	NewID func() string
}

func NewMonitor(
	catalog *Catalog,
	cooldown ports.CooldownStore,
	thresholds services.Thresholds,
	advisor *services.RestAdvisor,
	log *slog.Logger,
) *Monitor {
	return &Monitor{
		catalog:    catalog,
		tracker:    NewTracker(),
		cooldown:   cooldown,
		thresholds: thresholds,
		advisor:    advisor,
		log:        log.With(slog.String("component", "monitor")),
		NewID:      uuid.NewString,
	}
}

func (m *Monitor) Tracker() *Tracker { return m.tracker }

func (m *Monitor) Catalog() *Catalog { return m.catalog }

func cooldownKey(assignmentID, triggerType string) string {
	return assignmentID + ":" + triggerType
}

// RunTick evaluates every assignment against its snapshot and returns the events,
// ordered by assignment ID then catalog order. An assignment with no snapshot has
// every feed missing, so all of its triggers are skipped.
func (m *Monitor) RunTick(
	ctx context.Context,
	assignments []domain.Assignment,
	snapshots map[string]domain.TelemetrySnapshot,
	now time.Time,
) ([]domain.MonitoringTriggerEvent, error) {
	sorted := slices.Clone(assignments)
	slices.SortFunc(sorted, func(a, b domain.Assignment) int { return strings.Compare(a.ID, b.ID) })

	out := []domain.MonitoringTriggerEvent{}
	for _, a := range sorted {
		snap, ok := snapshots[a.ID]
		if !ok {
			snap = domain.TelemetrySnapshot{AssignmentID: a.ID, CapturedAt: now}
			for _, f := range domain.AllFeeds {
				snap.MarkMissing(f, "no snapshot")
			}
		}
		evs, err := m.Evaluate(ctx, a, snap, now)
		if err != nil {
			return nil, fmt.Errorf("run tick: %w", err)
		}
		out = append(out, evs...)
	}
	return out, nil
}

// Evaluate runs every catalog trigger for one assignment. Predicates run first;
// trigger state and cooldown windows change only once all of them are done, so a
// cancelled context abandons the evaluation without side effects.
func (m *Monitor) Evaluate(
	ctx context.Context,
	a domain.Assignment,
	snap domain.TelemetrySnapshot,
	now time.Time,
) ([]domain.MonitoringTriggerEvent, error) {
	p, unlock := m.tracker.lock(a.ID)
	defer unlock()

	in := TriggerInput{
		Assignment: a,
		Snapshot:   snap,
		Now:        now,
		Thresholds: m.thresholds,
		Advisor:    m.advisor,
	}

	type verdict struct {
		d  TriggerDescriptor
		ev Evaluation
	}
	var verdicts []verdict
	for _, d := range m.catalog.descriptors {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", a.ID, err)
		}

		if missing := missingFeeds(d, snap); len(missing) > 0 {
			triggersSkipped.WithLabelValues(d.Type).Inc()
			m.log.Debug("trigger skipped: telemetry unavailable",
				"assignment_id", a.ID, "trigger", d.Type, "feeds", missing)
			continue
		}
		verdicts = append(verdicts, verdict{d: d, ev: d.Predicate(in)})
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", a.ID, err)
	}

	// Committed as a whole: a cancellation from here on must not leave some
	// cooldown windows consumed and their events dropped.
	cctx := context.WithoutCancel(ctx)
	var out []domain.MonitoringTriggerEvent
	for _, v := range verdicts {
		d, ev := v.d, v.ev
		key := cooldownKey(a.ID, d.Type)
		tr := p.observe(d, ev, now, func(sev domain.Severity) bool {
			ok, err := m.cooldown.Admit(cctx, key, sev, d.Cooldown, now)
			if err != nil {
				// Fail open: a duplicate alert beats a lost one.
				m.log.Warn("cooldown store unavailable", "key", key, "err", err)
				return true
			}
			return ok
		})
		if !tr.Emit {
			continue
		}

		params := ev.Params
		if !ev.Fire {
			params = nil
		}
		out = append(out, domain.MonitoringTriggerEvent{
			ID:             m.NewID(),
			AssignmentID:   a.ID,
			TriggerType:    d.Type,
			Category:       d.Category,
			Severity:       tr.Severity,
			Params:         params,
			RequiresReplan: tr.Replan && (tr.To == domain.TriggerFired || tr.To == domain.TriggerEscalated),
			State:          tr.To,
			EmittedAt:      now,
		})
	}

	for _, ev := range out {
		triggerEvents.WithLabelValues(ev.TriggerType, string(ev.Severity), string(ev.State)).Inc()
	}
	return out, nil
}

func missingFeeds(d TriggerDescriptor, snap domain.TelemetrySnapshot) []string {
	var missing []string
	for _, f := range d.Feeds {
		if !snap.Has(f) {
			missing = append(missing, string(f))
		}
	}
	return missing
}

// Acknowledge is the dispatcher action on an active trigger.
func (m *Monitor) Acknowledge(assignmentID, triggerType string, now time.Time) (TriggerStatus, error) {
	if _, ok := m.catalog.Get(triggerType); !ok {
		return TriggerStatus{}, fmt.Errorf("acknowledge: unknown trigger %q", triggerType)
	}
	return m.tracker.Acknowledge(assignmentID, triggerType, now)
}

// Forget drops trigger state and cooldown windows for an assignment.
func (m *Monitor) Forget(ctx context.Context, assignmentID string) {
	m.tracker.Drop(assignmentID)
	if err := m.cooldown.Clear(ctx, assignmentID+":"); err != nil {
		m.log.Warn("clear cooldowns failed", "assignment_id", assignmentID, "err", err)
	}
}

// ReplanReasons returns the trigger types among evs that ask for a re-plan.
func ReplanReasons(evs []domain.MonitoringTriggerEvent) []string {
	set := map[string]bool{}
	for _, ev := range evs {
		if ev.RequiresReplan {
			set[ev.TriggerType] = true
		}
	}
	return slices.Sorted(maps.Keys(set))
}
