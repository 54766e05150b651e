package monitor

import (
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"sort"
	"sync"
	"time"
)

var ErrNotActive = errors.New("trigger is not active")

// TriggerStatus is the tracked lifecycle of one (assignment, trigger type) pair.
type TriggerStatus struct {
	TriggerType    string              `json:"trigger_type"`
	State          domain.TriggerState `json:"state"`
	Severity       domain.Severity     `json:"severity,omitempty"`
	RequiresReplan bool                `json:"requires_replan"`
	FiredAt        time.Time           `json:"fired_at,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at,omitempty"`
	escalated      bool
}

// Transition is the outcome of observing one predicate result. Emit is set when
// the change should be published as an event.
type Transition struct {
	From, To domain.TriggerState
	Severity domain.Severity
	Replan   bool
	Emit     bool
}

type partition struct {
	mu   sync.Mutex
	recs map[string]*TriggerStatus
}

// Tracker holds trigger state per assignment. Each assignment has its own lock,
// so workers evaluating different assignments never contend.
type Tracker struct {
	mu    sync.Mutex
	parts map[string]*partition
}

func NewTracker() *Tracker {
	return &Tracker{parts: make(map[string]*partition)}
}

func (t *Tracker) partition(assignmentID string) *partition {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.parts[assignmentID]
	if !ok {
		p = &partition{recs: make(map[string]*TriggerStatus)}
		t.parts[assignmentID] = p
	}
	return p
}

// lock returns the assignment's partition locked, with its unlock func.
// A tick holds it for the whole evaluation of the assignment.
func (t *Tracker) lock(assignmentID string) (*partition, func()) {
	p := t.partition(assignmentID)
	p.mu.Lock()
	return p, p.mu.Unlock
}

func (p *partition) status(triggerType string) *TriggerStatus {
	s, ok := p.recs[triggerType]
	if !ok {
		s = &TriggerStatus{TriggerType: triggerType, State: domain.TriggerUnfired}
		p.recs[triggerType] = s
	}
	return s
}

// admitFunc asks the cooldown store whether an emission at sev may go out.
type admitFunc func(sev domain.Severity) bool

// observe applies one predicate result to the state machine:
//
//	unfired|resolved --fire, admitted--> fired
//	fired|acknowledged --fire, severity up or past EscalateAfter--> escalated
//	    (emitted when admitted or when it first requests a re-plan)
//	fired|escalated --clear--> auto_resolved --clear--> resolved
//	acknowledged --clear--> resolved
//	auto_resolved --fire, admitted--> fired
func (p *partition) observe(d TriggerDescriptor, ev Evaluation, now time.Time, admit admitFunc) Transition {
	s := p.status(d.Type)
	from := s.State

	sev := d.Severity
	if ev.Severity != "" {
		sev = ev.Severity
	}
	replan := d.RequiresReplan || ev.Replan

	move := func(to domain.TriggerState, emit bool) Transition {
		s.State = to
		s.UpdatedAt = now
		return Transition{From: from, To: to, Severity: s.Severity, Replan: s.RequiresReplan, Emit: emit}
	}
	stay := Transition{From: from, To: from, Severity: s.Severity, Replan: s.RequiresReplan}

	switch s.State {
	case domain.TriggerUnfired, domain.TriggerResolved, domain.TriggerAutoResolved:
		if !ev.Fire {
			if s.State == domain.TriggerAutoResolved {
				return move(domain.TriggerResolved, false)
			}
			return stay
		}
		if !admit(sev) {
			return stay
		}
		s.Severity = sev
		s.RequiresReplan = replan
		s.FiredAt = now
		s.escalated = false
		return move(domain.TriggerFired, true)

	case domain.TriggerFired, domain.TriggerAcknowledged, domain.TriggerEscalated:
		if !ev.Fire {
			if s.State == domain.TriggerAcknowledged {
				return move(domain.TriggerResolved, true)
			}
			return move(domain.TriggerAutoResolved, true)
		}

		target := sev
		timed := !s.escalated && d.EscalateAfter > 0 && now.Sub(s.FiredAt) >= d.EscalateAfter
		if timed {
			if esc := escalationSeverity(d, s.Severity); esc.Rank() > target.Rank() {
				target = esc
			}
		}
		if target.Rank() <= s.Severity.Rank() {
			if !timed {
				return stay
			}
			target = s.Severity
		}

		wasReplan := s.RequiresReplan
		s.escalated = true
		s.Severity = target
		s.RequiresReplan = true
		// The cooldown may already cover this severity, but a new re-plan request
		// is always published.
		admitted := admit(target)
		return move(domain.TriggerEscalated, admitted || !wasReplan)
	}
	return stay
}

// escalationSeverity is the descriptor's escalation level, or one step above current.
func escalationSeverity(d TriggerDescriptor, current domain.Severity) domain.Severity {
	if d.Escalation != "" {
		return d.Escalation
	}
	switch current {
	case domain.SeverityLow:
		return domain.SeverityMedium
	case domain.SeverityMedium:
		return domain.SeverityHigh
	}
	return domain.SeverityCritical
}

// Acknowledge records the dispatcher action on an active trigger.
func (t *Tracker) Acknowledge(assignmentID, triggerType string, now time.Time) (TriggerStatus, error) {
	p, unlock := t.lock(assignmentID)
	defer unlock()

	s, ok := p.recs[triggerType]
	if !ok || !(s.State == domain.TriggerFired || s.State == domain.TriggerEscalated) {
		return TriggerStatus{}, fmt.Errorf("acknowledge %s/%s: %w", assignmentID, triggerType, ErrNotActive)
	}
	s.State = domain.TriggerAcknowledged
	s.UpdatedAt = now
	return *s, nil
}

// Status returns the tracked triggers of an assignment, ordered by type.
func (t *Tracker) Status(assignmentID string) []TriggerStatus {
	p, unlock := t.lock(assignmentID)
	defer unlock()

	out := make([]TriggerStatus, 0, len(p.recs))
	for _, s := range p.recs {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerType < out[j].TriggerType })
	return out
}

// Drop forgets everything about an assignment.
func (t *Tracker) Drop(assignmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.parts, assignmentID)
}
