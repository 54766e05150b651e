package ports

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"time"
)

// CooldownStore deduplicates trigger emissions.
type CooldownStore interface {
	// Admit reports whether an emission for key may go out at now. It is admitted
	// when no emission for key happened within window, or when severity ranks above
	// the last admitted one. An admitted emission starts a new window.
	Admit(ctx context.Context, key string, severity domain.Severity, window time.Duration, now time.Time) (bool, error)
	// Clear forgets every key with the given prefix.
	Clear(ctx context.Context, prefix string) error
}
