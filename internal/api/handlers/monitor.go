package handlers

import (
	"context"
	"hos-dispatch-service/internal/adapters/telemetry"
	"hos-dispatch-service/internal/api/dto"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/monitor"
	"hos-dispatch-service/internal/platform/obs"
	"hos-dispatch-service/internal/ports"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AssignmentStore is the registry of monitored assignments.
type AssignmentStore interface {
	ports.AssignmentSource
	Upsert(a domain.Assignment) error
	Remove(id string) bool
}

// TelemetrySink accepts pushed readings.
type TelemetrySink interface {
	Push(assignmentID string, u telemetry.Update)
	Forget(assignmentID string)
}

// EventHistory serves recently published trigger events.
type EventHistory interface {
	List(assignmentID string) []domain.MonitoringTriggerEvent
	Forget(assignmentID string)
}

// Canceller stops background work for a removed assignment.
type Canceller interface {
	Cancel(ctx context.Context, assignmentID string)
}

type MonitorHandler struct {
	Monitor     *monitor.Monitor
	Assignments AssignmentStore
	Telemetry   ports.TelemetryProvider
	FeedTimeout time.Duration
	Publisher   ports.EventPublisher
	Queue       *monitor.ReplanQueue

	// Optional.
	Sink      TelemetrySink
	History   EventHistory
	Canceller Canceller
	Logger    *slog.Logger
	Now       func() time.Time
}

// Tick runs one monitoring pass on demand. Events are published and re-plans
// queued exactly as the background loop would.
func (h *MonitorHandler) Tick(w http.ResponseWriter, r *http.Request) {
	var req dto.TickRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()

	now := h.now()
	if req.Now != nil {
		now = req.Now.UTC()
	}

	assignments := req.Assignments
	if assignments == nil {
		var err error
		if assignments, err = h.Assignments.Active(ctx); err != nil {
			writeServiceError(w, r, "list assignments", err)
			return
		}
	}

	var snapshots map[string]domain.TelemetrySnapshot
	if req.Snapshots != nil {
		snapshots = make(map[string]domain.TelemetrySnapshot, len(req.Snapshots))
		for _, s := range req.Snapshots {
			snapshots[s.AssignmentID] = s
		}
	} else {
		snapshots = h.fetchSnapshots(ctx, assignments, now)
	}

	evs, err := h.Monitor.RunTick(ctx, assignments, snapshots, now)
	if err != nil {
		writeServiceError(w, r, "run monitor tick", err)
		return
	}

	if len(evs) > 0 && h.Publisher != nil {
		if err := h.Publisher.Publish(ctx, evs); err != nil {
			loggerOr(h.Logger).Error("publish trigger events",
				"req_id", obs.RequestID(ctx), "count", len(evs), "err", err)
		}
	}

	res := dto.TickResponse{Now: now, Events: evs, Replans: []string{}}
	byAssignment := map[string][]domain.MonitoringTriggerEvent{}
	for _, ev := range evs {
		byAssignment[ev.AssignmentID] = append(byAssignment[ev.AssignmentID], ev)
	}
	for _, a := range assignments {
		reasons := monitor.ReplanReasons(byAssignment[a.ID])
		if len(reasons) == 0 || h.Queue == nil {
			continue
		}
		h.Queue.Enqueue(monitor.ReplanRequest{AssignmentID: a.ID, Reasons: reasons, RequestedAt: now})
		res.Replans = append(res.Replans, a.ID)
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *MonitorHandler) fetchSnapshots(ctx context.Context, assignments []domain.Assignment, now time.Time) map[string]domain.TelemetrySnapshot {
	out := make(map[string]domain.TelemetrySnapshot, len(assignments))
	if h.Telemetry == nil {
		return out
	}
	timeout := h.FeedTimeout
	if timeout <= 0 {
		timeout = monitor.DefaultLoopConfig().FeedTimeout
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, a := range assignments {
		g.Go(func() error {
			snap := monitor.FetchSnapshot(gctx, h.Telemetry, a.ID, timeout, now)
			mu.Lock()
			out[a.ID] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (h *MonitorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var a domain.Assignment
	if err := decodeJSON(w, r, &a, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Assignments.Upsert(a); err != nil {
		writeServiceError(w, r, "register assignment", err)
		return
	}
	stored, err := h.Assignments.Get(r.Context(), a.ID)
	if err != nil {
		writeServiceError(w, r, "register assignment", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.AssignmentResponse{Assignment: stored})
}

// Remove stops monitoring an assignment and drops everything held for it.
func (h *MonitorHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.Assignments.Remove(id) {
		writeError(w, r, http.StatusNotFound, ports.ErrAssignmentNotFound.Error())
		return
	}

	ctx := r.Context()
	if h.Canceller != nil {
		h.Canceller.Cancel(ctx, id)
	} else {
		h.Monitor.Forget(ctx, id)
		if h.Queue != nil {
			h.Queue.Drop(id)
		}
	}
	if h.Sink != nil {
		h.Sink.Forget(id)
	}
	if h.History != nil {
		h.History.Forget(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MonitorHandler) PushTelemetry(w http.ResponseWriter, r *http.Request) {
	if h.Sink == nil {
		writeError(w, r, http.StatusNotImplemented, "telemetry is read from an external provider")
		return
	}
	var u telemetry.Update
	if err := decodeJSON(w, r, &u, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if u.Empty() {
		writeError(w, r, http.StatusBadRequest, "at least one reading is required")
		return
	}
	h.Sink.Push(r.PathValue("assignmentID"), u)
	w.WriteHeader(http.StatusAccepted)
}

// Events lists recent trigger events and every trigger that has fired.
func (h *MonitorHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Assignments.Get(r.Context(), id); err != nil {
		writeServiceError(w, r, "get assignment", err)
		return
	}

	res := dto.EventsResponse{
		AssignmentID: id,
		Events:       []domain.MonitoringTriggerEvent{},
		Triggers:     []monitor.TriggerStatus{},
	}
	for _, st := range h.Monitor.Tracker().Status(id) {
		if st.State != domain.TriggerUnfired {
			res.Triggers = append(res.Triggers, st)
		}
	}
	if h.History != nil {
		res.Events = append(res.Events, h.History.List(id)...)
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *MonitorHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, typ := r.PathValue("id"), r.PathValue("type")
	if _, ok := h.Monitor.Catalog().Get(typ); !ok {
		writeError(w, r, http.StatusNotFound, "unknown trigger type "+typ)
		return
	}
	st, err := h.Monitor.Acknowledge(id, typ, h.now())
	if err != nil {
		writeServiceError(w, r, "acknowledge trigger", err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (h *MonitorHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}
