package monitor

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// LoopConfig controls the sweep cadence and parallelism.
type LoopConfig struct {
	Period      time.Duration
	FeedTimeout time.Duration
	Workers     int
}

const publishTimeout = 10 * time.Second

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{Period: 60 * time.Second, FeedTimeout: 5 * time.Second, Workers: 8}
}

// Loop drives the Monitor on a fixed period. Each sweep fans active assignments
// out to a bounded worker pool; an assignment still being evaluated from the
// previous sweep is skipped.
type Loop struct {
	cfg       LoopConfig
	source    ports.AssignmentSource
	telemetry ports.TelemetryProvider
	monitor   *Monitor
	publisher ports.EventPublisher
	queue     *ReplanQueue
	log       *slog.Logger
	now       func() time.Time

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	known    map[string]bool
}

func NewLoop(
	cfg LoopConfig,
	source ports.AssignmentSource,
	telemetry ports.TelemetryProvider,
	monitor *Monitor,
	publisher ports.EventPublisher,
	queue *ReplanQueue,
	log *slog.Logger,
) *Loop {
	def := DefaultLoopConfig()
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.FeedTimeout <= 0 {
		cfg.FeedTimeout = def.FeedTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &Loop{
		cfg:       cfg,
		source:    source,
		telemetry: telemetry,
		monitor:   monitor,
		publisher: publisher,
		queue:     queue,
		log:       log.With(slog.String("component", "monitor-loop")),
		now:       time.Now,
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		inflight:  make(map[string]context.CancelFunc),
		known:     make(map[string]bool),
	}
}

// Run sweeps every Period until ctx is done, then waits for in-flight work.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("monitor loop started", "period", l.cfg.Period, "workers", l.cfg.Workers)

	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()

	l.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			l.Wait()
			l.log.Info("monitor loop stopped")
			return nil
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

// Sweep starts one evaluation per active assignment and returns without waiting.
func (l *Loop) Sweep(ctx context.Context) {
	ticksTotal.Inc()

	assignments, err := l.source.Active(ctx)
	if err != nil {
		l.log.Error("list active assignments", "err", err)
		return
	}
	activeAssignments.Set(float64(len(assignments)))

	active := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		active[a.ID] = true
	}
	l.mu.Lock()
	var gone []string
	for id := range l.known {
		if !active[id] {
			gone = append(gone, id)
		}
	}
	l.mu.Unlock()
	for _, id := range gone {
		l.Cancel(ctx, id)
	}

	now := l.now()
	for _, a := range assignments {
		l.mu.Lock()
		l.known[a.ID] = true
		if _, busy := l.inflight[a.ID]; busy {
			l.mu.Unlock()
			skippedInFlight.Inc()
			l.log.Warn("previous evaluation still running; skipping", "assignment_id", a.ID)
			continue
		}
		actx, cancel := context.WithCancel(ctx)
		l.inflight[a.ID] = cancel
		l.mu.Unlock()

		l.wg.Add(1)
		go l.evaluate(actx, cancel, a, now)
	}
}

func (l *Loop) evaluate(ctx context.Context, cancel context.CancelFunc, a domain.Assignment, now time.Time) {
	defer l.wg.Done()
	defer func() {
		cancel()
		l.mu.Lock()
		delete(l.inflight, a.ID)
		l.mu.Unlock()
	}()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer l.sem.Release(1)

	start := time.Now()
	defer func() { assignmentEvalDuration.Observe(time.Since(start).Seconds()) }()

	snap := FetchSnapshot(ctx, l.telemetry, a.ID, l.cfg.FeedTimeout, now)
	for feed, reason := range snap.Missing {
		feedFailures.WithLabelValues(string(feed)).Inc()
		l.log.Warn("telemetry unavailable", "assignment_id", a.ID, "feed", feed, "reason", reason)
	}

	evs, err := l.monitor.Evaluate(ctx, a, snap, now)
	if err != nil {
		if ctx.Err() == nil {
			l.log.Error("evaluate assignment", "assignment_id", a.ID, "err", err)
		}
		return
	}
	if len(evs) == 0 || l.removed(a.ID) {
		return
	}

	// The events are committed to the trigger state and cooldowns, so a shutdown
	// from here on still publishes them.
	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer pcancel()
	if err := l.publisher.Publish(pctx, evs); err != nil {
		l.log.Error("publish trigger events", "assignment_id", a.ID, "count", len(evs), "err", err)
	}

	if reasons := ReplanReasons(evs); len(reasons) > 0 {
		if l.queue.Enqueue(ReplanRequest{AssignmentID: a.ID, Reasons: reasons, RequestedAt: now}) {
			replans.WithLabelValues("queued").Inc()
		} else {
			replans.WithLabelValues("coalesced").Inc()
		}
	}
}

// removed reports whether the assignment was cancelled while it was evaluated.
func (l *Loop) removed(assignmentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.known[assignmentID]
}

// Cancel abandons any in-flight evaluation of the assignment, drops its queued
// re-plan and forgets its trigger state.
func (l *Loop) Cancel(ctx context.Context, assignmentID string) {
	l.mu.Lock()
	if cancel, ok := l.inflight[assignmentID]; ok {
		cancel()
	}
	delete(l.known, assignmentID)
	l.mu.Unlock()

	l.queue.Drop(assignmentID)
	l.monitor.Forget(ctx, assignmentID)
	l.log.Info("assignment cancelled", "assignment_id", assignmentID)
}

// Wait blocks until all started evaluations have finished.
func (l *Loop) Wait() { l.wg.Wait() }

// FetchSnapshot reads every feed concurrently, each under its own timeout.
// Failed feeds are recorded in Missing and never fail the snapshot.
func FetchSnapshot(
	ctx context.Context,
	p ports.TelemetryProvider,
	assignmentID string,
	timeout time.Duration,
	now time.Time,
) domain.TelemetrySnapshot {
	snap := domain.TelemetrySnapshot{AssignmentID: assignmentID, CapturedAt: now}

	var mu sync.Mutex
	var wg sync.WaitGroup
	fetch := func(feed domain.TelemetryFeed, get func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := get(fctx); err != nil {
				mu.Lock()
				snap.MarkMissing(feed, err.Error())
				mu.Unlock()
			}
		}()
	}

	fetch(domain.FeedELD, func(c context.Context) error {
		r, err := p.DriverHOS(c, assignmentID)
		if err == nil {
			mu.Lock()
			snap.HOS = &r
			mu.Unlock()
		}
		return err
	})
	fetch(domain.FeedGPS, func(c context.Context) error {
		r, err := p.Position(c, assignmentID)
		if err == nil {
			mu.Lock()
			snap.Position = &r
			mu.Unlock()
		}
		return err
	})
	fetch(domain.FeedFuel, func(c context.Context) error {
		r, err := p.Fuel(c, assignmentID)
		if err == nil {
			mu.Lock()
			snap.Fuel = &r
			mu.Unlock()
		}
		return err
	})
	fetch(domain.FeedWeather, func(c context.Context) error {
		r, err := p.Weather(c, assignmentID)
		if err == nil {
			mu.Lock()
			snap.Weather = &r
			mu.Unlock()
		}
		return err
	})
	fetch(domain.FeedDock, func(c context.Context) error {
		r, err := p.Dock(c, assignmentID)
		if err == nil {
			mu.Lock()
			snap.Dock = &r
			mu.Unlock()
		}
		return err
	})

	wg.Wait()
	return snap
}
