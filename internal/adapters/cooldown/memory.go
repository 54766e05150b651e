package cooldown

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"strings"
	"sync"
	"time"
)

type window struct {
	rank  int
	until time.Time
}

// MemoryStore is a process-local CooldownStore.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]window)}
}

func (s *MemoryStore) Admit(_ context.Context, key string, severity domain.Severity, w time.Duration, now time.Time) (bool, error) {
	if w <= 0 {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.m[key]
	if ok && now.Before(prev.until) && severity.Rank() <= prev.rank {
		return false, nil
	}
	s.m[key] = window{rank: severity.Rank(), until: now.Add(w)}
	return true, nil
}

func (s *MemoryStore) Clear(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			delete(s.m, k)
		}
	}
	return nil
}
