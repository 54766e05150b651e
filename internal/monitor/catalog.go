package monitor

import (
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/services"
	"strings"
	"time"
)

// TriggerInput is everything a predicate may look at. Readings for the feeds a
// descriptor lists are guaranteed non-nil; other readings may be nil.
type TriggerInput struct {
	Assignment domain.Assignment
	Snapshot   domain.TelemetrySnapshot
	Now        time.Time
	Thresholds services.Thresholds
	Advisor    *services.RestAdvisor
}

// NextStop returns the next unserviced stop, if any.
func (in TriggerInput) NextStop() (domain.Stop, bool) { return in.Assignment.NextStop() }

// Evaluation is a predicate's verdict for one tick.
type Evaluation struct {
	Fire bool
	// Overrides the descriptor severity when set.
	Severity domain.Severity
	// ORed with the descriptor's RequiresReplan.
	Replan bool
	Params map[string]any
}

func Quiet() Evaluation { return Evaluation{} }

func Fire(params map[string]any) Evaluation { return Evaluation{Fire: true, Params: params} }

// With returns e with severity and replan overridden.
func (e Evaluation) With(sev domain.Severity, replan bool) Evaluation {
	e.Severity = sev
	e.Replan = replan
	return e
}

type Predicate func(TriggerInput) Evaluation

// TriggerDescriptor is one row of the trigger table.
type TriggerDescriptor struct {
	Type           string
	Category       domain.TriggerCategory
	Severity       domain.Severity
	RequiresReplan bool
	// Feeds the predicate reads; the trigger is skipped for a tick when any is missing.
	Feeds    []domain.TelemetryFeed
	Cooldown time.Duration
	// If the condition is still active this long after firing it escalates to
	// Escalation (or one level up when unset) and requests a re-plan.
	EscalateAfter time.Duration
	Escalation    domain.Severity
	Predicate     Predicate
}

func (d TriggerDescriptor) validate() error {
	if strings.TrimSpace(d.Type) == "" {
		return errors.New("trigger type is empty")
	}
	if !d.Category.Valid() {
		return fmt.Errorf("trigger %s: unknown category %q", d.Type, d.Category)
	}
	if !d.Severity.Valid() {
		return fmt.Errorf("trigger %s: unknown severity %q", d.Type, d.Severity)
	}
	if d.Escalation != "" && !d.Escalation.Valid() {
		return fmt.Errorf("trigger %s: unknown escalation severity %q", d.Type, d.Escalation)
	}
	if d.Predicate == nil {
		return fmt.Errorf("trigger %s: predicate is nil", d.Type)
	}
	if d.Cooldown < 0 || d.EscalateAfter < 0 {
		return fmt.Errorf("trigger %s: durations must not be negative", d.Type)
	}
	for _, f := range d.Feeds {
		if !validFeed(f) {
			return fmt.Errorf("trigger %s: unknown feed %q", d.Type, f)
		}
	}
	return nil
}

func validFeed(f domain.TelemetryFeed) bool {
	for _, known := range domain.AllFeeds {
		if f == known {
			return true
		}
	}
	return false
}

// Catalog is an ordered set of trigger descriptors. Build it before the loop
// starts; it is read-only afterwards.
type Catalog struct {
	descriptors []TriggerDescriptor
	index       map[string]int
}

func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

func (c *Catalog) Register(d TriggerDescriptor) error {
	if err := d.validate(); err != nil {
		return fmt.Errorf("register trigger: %w", err)
	}
	if _, dup := c.index[d.Type]; dup {
		return fmt.Errorf("register trigger: %s already registered", d.Type)
	}
	c.index[d.Type] = len(c.descriptors)
	c.descriptors = append(c.descriptors, d)
	return nil
}

func (c *Catalog) Get(triggerType string) (TriggerDescriptor, bool) {
	i, ok := c.index[triggerType]
	if !ok {
		return TriggerDescriptor{}, false
	}
	return c.descriptors[i], true
}

// Descriptors returns the table in registration order.
func (c *Catalog) Descriptors() []TriggerDescriptor {
	out := make([]TriggerDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

func (c *Catalog) Len() int { return len(c.descriptors) }
