package poll

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldpoint/fieldpoint-core/internal/metrics"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
	"github.com/fieldpoint/fieldpoint-core/internal/remote"
)

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Completion describes one finished poll task. Handlers receive it after the
// cache has been updated, so reading the cache for the listed topics yields
// at least the values reported here.
type Completion struct {
	// TaskID identifies the poll task for log correlation.
	TaskID string

	// GroupID is the remote group that was polled.
	GroupID string

	// Updated maps point topic to the fresh observation from this cycle.
	Updated map[string]point.Reading

	// Failed maps point topic to the per-point failure; the cache keeps the
	// point's previous value.
	Failed map[string]error

	// Time is when the task completed.
	Time time.Time
}

// CompletionHandler consumes finished poll tasks (publish engine, recorder).
// Handlers run on the worker goroutine and must not block for long.
type CompletionHandler func(Completion)

// Config tunes the scheduler.
type Config struct {
	// TickInterval is the cadence of due-time evaluation. It doubles as the
	// minimum spacing between retries of an unreachable remote.
	TickInterval time.Duration

	// MaxConcurrent bounds how many groups may be polled simultaneously.
	MaxConcurrent int
}

// Scheduler drives the poll loop: on every tick it computes, per remote
// group, the subset of points whose interval has elapsed, and launches a
// bounded number of concurrent poll tasks. Group serialization is delegated
// to each group's request token, so a slow remote stalls only itself.
type Scheduler struct {
	groups *remote.Groups
	cache  *point.Cache
	clock  Clock
	logger Logger

	tick time.Duration
	sem  chan struct{}

	mu       sync.Mutex
	handlers []CompletionHandler

	wg sync.WaitGroup
}

// New creates a scheduler over the given grouping and cache.
func New(cfg Config, groups *remote.Groups, cache *point.Cache) *Scheduler {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Second
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		groups: groups,
		cache:  cache,
		clock:  realClock{},
		logger: noopLogger{},
		tick:   tick,
		sem:    make(chan struct{}, maxConcurrent),
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock overrides the scheduler's clock. Intended for tests.
func (s *Scheduler) SetClock(clock Clock) {
	s.clock = clock
}

// OnCompletion registers a handler invoked after every finished poll task.
func (s *Scheduler) OnCompletion(h CompletionHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Run executes the scheduler loop until the context is cancelled, then
// waits for in-flight poll tasks to drain.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("poll scheduler started",
		"groups", s.groups.Len(),
		"tick", s.tick.String(),
		"max_concurrent", cap(s.sem),
	)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("poll scheduler stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle evaluates every idle group once and dispatches poll tasks for
// those with due points. Groups mid-request are skipped, never queued: the
// due points simply remain due for a later tick.
func (s *Scheduler) runCycle(ctx context.Context) {
	now := s.clock.Now()

	for _, g := range s.groups.All() {
		due := duePoints(g, now)
		if len(due) == 0 {
			continue
		}
		if !g.TryBegin() {
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			g.End()
			return
		}

		s.wg.Add(1)
		go func(g *remote.Group, due []*point.Point) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer g.End()
			metrics.GroupsPolling.Inc()
			defer metrics.GroupsPolling.Dec()
			s.pollGroup(ctx, g, due)
		}(g, due)
	}
}

// duePoints returns the subset of a group's points whose interval has elapsed.
func duePoints(g *remote.Group, now time.Time) []*point.Point {
	var due []*point.Point
	for _, p := range g.Points {
		if p.Due(now) {
			due = append(due, p)
		}
	}
	return due
}

// pollGroup executes one poll task: a single batched read per remote group.
func (s *Scheduler) pollGroup(ctx context.Context, g *remote.Group, due []*point.Point) {
	taskID := uuid.NewString()

	// Points can share a driver address across devices on the same remote;
	// the batched request carries each address once.
	byAddress := make(map[string][]*point.Point, len(due))
	addresses := make([]string, 0, len(due))
	for _, p := range due {
		if _, seen := byAddress[p.Address]; !seen {
			addresses = append(addresses, p.Address)
		}
		byAddress[p.Address] = append(byAddress[p.Address], p)
	}

	values, pointErrs, err := g.Read(ctx, addresses)
	if err != nil {
		// Whole-remote failure: nothing is stamped, the cache keeps prior
		// values, and the circuit breaker paces the retries.
		metrics.PollCycles.WithLabelValues(metrics.ResultUnreachable).Inc()
		s.logger.Warn("remote unreachable",
			"task_id", taskID,
			"group", g.ID,
			"points", len(due),
			"error", err,
		)
		return
	}

	now := s.clock.Now()
	completion := Completion{
		TaskID:  taskID,
		GroupID: g.ID,
		Updated: make(map[string]point.Reading),
		Failed:  make(map[string]error),
		Time:    now,
	}

	for _, p := range due {
		p.StampAttempt(now)

		reading, ok := values[p.Address]
		if !ok {
			// Absent or errored in the response: keep the last-known value
			// but count the attempt so the point is not retried hot.
			err := pointErrs[p.Address]
			if err == nil {
				err = remote.ErrUnreachable
			}
			completion.Failed[p.Topic] = err
			metrics.PointReads.WithLabelValues(metrics.ResultFailure).Inc()
			continue
		}

		s.cache.Put(p.Topic, reading.Value, reading.Timestamp)
		completion.Updated[p.Topic] = point.Reading{Value: reading.Value, Updated: reading.Timestamp}
		metrics.PointReads.WithLabelValues(metrics.ResultSuccess).Inc()
	}

	metrics.PollCycles.WithLabelValues(metrics.ResultSuccess).Inc()

	if len(completion.Failed) > 0 {
		s.logger.Warn("poll task finished with point failures",
			"task_id", taskID,
			"group", g.ID,
			"updated", len(completion.Updated),
			"failed", len(completion.Failed),
		)
	} else {
		s.logger.Debug("poll task finished",
			"task_id", taskID,
			"group", g.ID,
			"updated", len(completion.Updated),
		)
	}

	s.mu.Lock()
	handlers := make([]CompletionHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h(completion)
	}
}
