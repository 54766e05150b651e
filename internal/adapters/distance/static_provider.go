package distance

import (
	"context"
	"fmt"
	"hos-dispatch-service/internal/ports"
	"sync"
)

type StaticLeg struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Meters  int    `json:"meters"`
	Seconds int    `json:"seconds"`
}

// StaticProvider answers from a fixed table of legs. Lookups are directional
// unless Symmetric is set. It backs tests and the offline CLI.
type StaticProvider struct {
	Symmetric bool

	mu    sync.Mutex
	m     map[string]ports.DistanceResult
	calls int
}

func NewStaticProvider(legs []StaticLeg) *StaticProvider {
	m := make(map[string]ports.DistanceResult, len(legs))
	for _, l := range legs {
		m[l.From+"|"+l.To] = ports.DistanceResult{DistanceMeters: l.Meters, DurationSeconds: l.Seconds}
	}
	return &StaticProvider{m: m}
}

func (p *StaticProvider) GetDistance(ctx context.Context, origin, destination string) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if r, ok := p.m[origin+"|"+destination]; ok {
		return r, nil
	}
	if p.Symmetric {
		if r, ok := p.m[destination+"|"+origin]; ok {
			return r, nil
		}
	}
	return ports.DistanceResult{}, fmt.Errorf("missing leg %q -> %q", origin, destination)
}

// Calls returns how many lookups were made.
func (p *StaticProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
