package services

import (
	"fmt"
	"hos-dispatch-service/internal/domain"
	"math"
)

// Thresholds are the dispatcher-configured limits the evaluator checks against.
type Thresholds struct {
	DriveLimitHours float64 `yaml:"drive_limit_hours" json:"drive_limit_hours"`
	DutyWindowHours float64 `yaml:"duty_window_hours" json:"duty_window_hours"`
	BreakAfterHours float64 `yaml:"break_after_hours" json:"break_after_hours"`
	RestAfterHours  float64 `yaml:"rest_after_hours" json:"rest_after_hours"`
	WarningPct      float64 `yaml:"warning_pct" json:"warning_pct"`
	CriticalPct     float64 `yaml:"critical_pct" json:"critical_pct"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DriveLimitHours: 11,
		DutyWindowHours: 14,
		BreakAfterHours: 8,
		RestAfterHours:  14,
		WarningPct:      0.75,
		CriticalPct:     0.90,
	}
}

func (t Thresholds) Validate() error {
	limits := []struct {
		name string
		v    float64
	}{
		{"drive_limit_hours", t.DriveLimitHours},
		{"duty_window_hours", t.DutyWindowHours},
		{"break_after_hours", t.BreakAfterHours},
		{"rest_after_hours", t.RestAfterHours},
	}
	for _, l := range limits {
		if !(l.v > 0) || math.IsInf(l.v, 0) {
			return domain.NewValidationError("thresholds."+l.name, "must be a positive number")
		}
	}
	if !(t.WarningPct > 0 && t.WarningPct < t.CriticalPct && t.CriticalPct <= 1) {
		return domain.NewValidationError("thresholds", "need 0 < warning_pct < critical_pct <= 1 (got %.2f, %.2f)", t.WarningPct, t.CriticalPct)
	}
	return nil
}

// EvaluateCompliance checks a driver's counters against the four HOS rules.
// It is a pure function of its inputs.
func EvaluateCompliance(state domain.DriverHOSState, t Thresholds) domain.ComplianceReport {
	checks := []domain.RuleCheck{
		evaluateRule(domain.RuleDriveLimit, "driving time", state.HoursDriven, t.DriveLimitHours, t),
		evaluateRule(domain.RuleDutyWindow, "duty window", state.OnDutyTime, t.DutyWindowHours, t),
		evaluateRule(domain.RuleBreakRequired, "driving since last break", state.HoursSinceBreak, t.BreakAfterHours, t),
		evaluateRule(domain.RuleRestRequired, "time since qualifying rest", state.HoursSinceQualifyingRest, t.RestAfterHours, t),
	}

	report := domain.ComplianceReport{
		Checks:     checks,
		Violations: []string{},
		Warnings:   []string{},
		Status:     domain.StatusCompliant,
	}
	for _, c := range checks {
		switch c.Status {
		case domain.StatusNonCompliant:
			report.Violations = append(report.Violations, c.Message)
		case domain.StatusWarning, domain.StatusCritical:
			report.Warnings = append(report.Warnings, c.Message)
		}
		if c.Status.Rank() > report.Status.Rank() {
			report.Status = c.Status
		}
	}
	return report
}

func evaluateRule(rule, label string, current, limit float64, t Thresholds) domain.RuleCheck {
	current = round4(current)
	limit = round4(limit)
	remaining := round4(limit - current)

	ratio := 1.0
	if limit > 0 {
		ratio = current / limit
	}

	c := domain.RuleCheck{
		Rule:        rule,
		Current:     current,
		Limit:       limit,
		Remaining:   remaining,
		IsCompliant: current <= limit,
	}

	switch {
	case !c.IsCompliant:
		c.Status = domain.StatusNonCompliant
		c.Message = fmt.Sprintf("%s %.2fh exceeds %.2fh limit by %.2fh", label, current, limit, -remaining)
	case ratio >= t.CriticalPct:
		c.Status = domain.StatusCritical
		c.Message = fmt.Sprintf("%s %.2fh of %.2fh, %.2fh remaining", label, current, limit, remaining)
	case ratio >= t.WarningPct:
		c.Status = domain.StatusWarning
		c.Message = fmt.Sprintf("%s %.2fh of %.2fh, %.2fh remaining", label, current, limit, remaining)
	default:
		c.Status = domain.StatusCompliant
		c.Message = fmt.Sprintf("%s %.2fh of %.2fh", label, current, limit)
	}
	return c
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
