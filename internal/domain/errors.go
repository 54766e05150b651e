package domain

import "fmt"

// ValidationError reports malformed caller input (negative hours, unknown enum values, ...).
// It is the only error class the planning core returns for bad input; regulation
// and telemetry conditions are reported as data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
