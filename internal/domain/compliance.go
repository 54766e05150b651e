package domain

type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusWarning      ComplianceStatus = "warning"
	StatusCritical     ComplianceStatus = "critical"
	StatusNonCompliant ComplianceStatus = "non_compliant"
)

// Rank orders statuses from best to worst.
func (s ComplianceStatus) Rank() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	case StatusNonCompliant:
		return 3
	}
	return 0
}

// Names of the regulated limits.
const (
	RuleDriveLimit    = "drive_limit"
	RuleDutyWindow    = "duty_window"
	RuleBreakRequired = "break_required"
	RuleRestRequired  = "rest_required"
)

type RuleCheck struct {
	Rule        string           `json:"rule"`
	IsCompliant bool             `json:"is_compliant"`
	Current     float64          `json:"current"`
	Limit       float64          `json:"limit"`
	Remaining   float64          `json:"remaining"`
	Status      ComplianceStatus `json:"status"`
	Message     string           `json:"message"`
}

type ComplianceReport struct {
	Checks     []RuleCheck      `json:"checks"`
	Violations []string         `json:"violations"`
	Warnings   []string         `json:"warnings"`
	Status     ComplianceStatus `json:"status"`
}

// IsCompliant reports whether no rule is over its limit.
func (r ComplianceReport) IsCompliant() bool { return len(r.Violations) == 0 }

// Check returns the named rule's result.
func (r ComplianceReport) Check(rule string) (RuleCheck, bool) {
	for _, c := range r.Checks {
		if c.Rule == rule {
			return c, true
		}
	}
	return RuleCheck{}, false
}

func (r ComplianceReport) Clone() ComplianceReport {
	out := r
	out.Checks = append([]RuleCheck(nil), r.Checks...)
	out.Violations = append([]string(nil), r.Violations...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return out
}
