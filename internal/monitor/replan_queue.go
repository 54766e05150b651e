package monitor

import (
	"context"
	"slices"
	"sync"
	"time"
)

// ReplanRequest asks for a new plan version from the assignment's live state.
type ReplanRequest struct {
	AssignmentID string
	Reasons      []string
	RequestedAt  time.Time
}

// ReplanQueue is a FIFO of pending re-plans holding at most one request per
// assignment; enqueueing again merges the reasons into the pending request.
type ReplanQueue struct {
	mu      sync.Mutex
	order   []string
	pending map[string]*ReplanRequest
	ready   chan struct{}
}

func NewReplanQueue() *ReplanQueue {
	return &ReplanQueue{pending: make(map[string]*ReplanRequest), ready: make(chan struct{}, 1)}
}

// Enqueue adds req and reports whether it created a new entry (false when coalesced).
func (q *ReplanQueue) Enqueue(req ReplanRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p, ok := q.pending[req.AssignmentID]; ok {
		for _, r := range req.Reasons {
			if !slices.Contains(p.Reasons, r) {
				p.Reasons = append(p.Reasons, r)
			}
		}
		slices.Sort(p.Reasons)
		return false
	}

	r := req
	r.Reasons = slices.Clone(req.Reasons)
	slices.Sort(r.Reasons)
	q.pending[req.AssignmentID] = &r
	q.order = append(q.order, req.AssignmentID)

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Drop discards the pending request for a cancelled assignment.
func (q *ReplanQueue) Drop(assignmentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[assignmentID]; !ok {
		return
	}
	delete(q.pending, assignmentID)
	q.order = slices.DeleteFunc(q.order, func(id string) bool { return id == assignmentID })
}

func (q *ReplanQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// TryNext pops the oldest request without blocking.
func (q *ReplanQueue) TryNext() (ReplanRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return ReplanRequest{}, false
	}
	id := q.order[0]
	q.order = q.order[1:]
	r := q.pending[id]
	delete(q.pending, id)

	if len(q.order) > 0 {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return *r, true
}

// Next blocks until a request is available or ctx is done.
func (q *ReplanQueue) Next(ctx context.Context) (ReplanRequest, error) {
	for {
		if r, ok := q.TryNext(); ok {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return ReplanRequest{}, ctx.Err()
		case <-q.ready:
		}
	}
}
