package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/point"
	"github.com/fieldpoint/fieldpoint-core/internal/remote"
)

// OverrideChecker reports whether writes to a device are currently blocked.
type OverrideChecker interface {
	IsOverridden(deviceTopic string) bool
}

// Logger defines the logging interface used by the Dispatcher.
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

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Result carries the per-point outcome maps every command returns: values
// for the points that succeeded, errors for the points that failed. A
// failure on one point never aborts the rest of the set.
type Result struct {
	Values map[string]any
	Errors map[string]error
}

func newResult() Result {
	return Result{
		Values: make(map[string]any),
		Errors: make(map[string]error),
	}
}

// LastEntry is one point's cached observation as returned by Last.
type LastEntry struct {
	Value   any       `json:"value,omitempty"`
	Updated time.Time `json:"updated,omitempty"`
}

// Dispatcher executes on-demand commands against resolved point sets.
//
// Commands share the remote groups' request tokens with the poll scheduler,
// so a command waits behind an in-flight poll rather than racing it to the
// same physical remote.
type Dispatcher struct {
	registry  *point.Registry
	cache     *point.Cache
	groups    *remote.Groups
	overrides OverrideChecker
	clock     Clock
	logger    Logger
}

// New creates a dispatcher. overrides may be nil when no override manager
// is configured; writes are then never blocked.
func New(registry *point.Registry, cache *point.Cache, groups *remote.Groups, overrides OverrideChecker) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		cache:     cache,
		groups:    groups,
		overrides: overrides,
		clock:     realClock{},
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetClock overrides the dispatcher's clock. Intended for tests.
func (d *Dispatcher) SetClock(clock Clock) {
	d.clock = clock
}

// resolve expands selectors and enforces the no-match rule shared by every
// command.
func (d *Dispatcher) resolve(selectors []string, pattern string) ([]*point.Point, error) {
	points, err := d.registry.Resolve(selectors, pattern)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, point.ErrNoMatch
	}
	return points, nil
}

// Get reads the resolved points fresh from their remotes, one batched
// request per group. Points whose read fails fall back to the cached value
// when one exists; only points with neither a fresh nor a cached value end
// up in the error map.
func (d *Dispatcher) Get(ctx context.Context, selectors []string, pattern string) (Result, error) {
	points, err := d.resolve(selectors, pattern)
	if err != nil {
		return Result{}, err
	}

	res := newResult()
	for group, members := range groupMembers(d.groups, points, res) {
		d.getFromGroup(ctx, group, members, &res)
	}
	return res, nil
}

// getFromGroup performs the fresh read for one group's members, filling res.
func (d *Dispatcher) getFromGroup(ctx context.Context, g *remote.Group, members []*point.Point, res *Result) {
	if err := g.Begin(ctx); err != nil {
		d.fallbackToCache(members, err, res)
		return
	}
	defer g.End()

	addresses := make([]string, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, p := range members {
		if _, dup := seen[p.Address]; dup {
			continue
		}
		seen[p.Address] = struct{}{}
		addresses = append(addresses, p.Address)
	}

	values, pointErrs, err := g.Read(ctx, addresses)
	if err != nil {
		d.fallbackToCache(members, err, res)
		return
	}

	for _, p := range members {
		reading, ok := values[p.Address]
		if !ok {
			readErr := pointErrs[p.Address]
			if readErr == nil {
				readErr = remote.ErrUnreachable
			}
			d.fallbackToCache([]*point.Point{p}, readErr, res)
			continue
		}
		d.cache.Put(p.Topic, reading.Value, reading.Timestamp)
		res.Values[p.Topic] = reading.Value
	}
}

// fallbackToCache serves the listed points from the cache, recording the
// read error only for points with no cached value at all.
func (d *Dispatcher) fallbackToCache(members []*point.Point, readErr error, res *Result) {
	for _, p := range members {
		value, _, present := d.cache.Get(p.Topic)
		if present {
			res.Values[p.Topic] = value
			continue
		}
		res.Errors[p.Topic] = readErr
	}
}

// Set writes the resolved points. Exactly one of value and valueMap is used:
// with a valueMap (keyed by full topic), points absent from the map are
// skipped without an entry in either outcome map; otherwise value is written
// to every resolved point.
//
// Non-writable points and points on overridden devices fail individually.
// A successful write is reflected in the cache immediately.
func (d *Dispatcher) Set(ctx context.Context, selectors []string, pattern string, value any, valueMap map[string]any) (Result, error) {
	points, err := d.resolve(selectors, pattern)
	if err != nil {
		return Result{}, err
	}

	res := newResult()
	for _, p := range points {
		v := value
		if valueMap != nil {
			mapped, ok := valueMap[p.Topic]
			if !ok {
				continue
			}
			v = mapped
		}
		d.setOne(ctx, p, v, &res)
	}
	return res, nil
}

func (d *Dispatcher) setOne(ctx context.Context, p *point.Point, value any, res *Result) {
	if !p.Writable {
		res.Errors[p.Topic] = fmt.Errorf("%w: %s", ErrNotWritable, p.Topic)
		return
	}
	if d.overrides != nil && d.overrides.IsOverridden(p.DeviceTopic) {
		res.Errors[p.Topic] = fmt.Errorf("%w: %s", ErrOverridden, p.DeviceTopic)
		return
	}

	g := d.groups.ForPoint(p.Topic)
	if g == nil {
		res.Errors[p.Topic] = fmt.Errorf("%w: %s", point.ErrUnknownPoint, p.Topic)
		return
	}

	if err := g.Begin(ctx); err != nil {
		res.Errors[p.Topic] = err
		return
	}
	err := g.Write(ctx, p.Address, value)
	g.End()

	if err != nil {
		res.Errors[p.Topic] = fmt.Errorf("write %s: %w", p.Topic, err)
		return
	}

	d.cache.Put(p.Topic, value, d.clock.Now())
	res.Values[p.Topic] = value
	d.logger.Info("point written", "topic", p.Topic)
}

// Revert restores the resolved writable points to their default state.
// Points with a configured default have the cache updated to it; otherwise
// the stale remote-side value stands until the next poll observes it.
func (d *Dispatcher) Revert(ctx context.Context, selectors []string, pattern string) (Result, error) {
	points, err := d.resolve(selectors, pattern)
	if err != nil {
		return Result{}, err
	}

	res := newResult()
	for _, p := range points {
		if !p.Writable {
			res.Errors[p.Topic] = fmt.Errorf("%w: %s", ErrNotWritable, p.Topic)
			continue
		}
		if d.overrides != nil && d.overrides.IsOverridden(p.DeviceTopic) {
			res.Errors[p.Topic] = fmt.Errorf("%w: %s", ErrOverridden, p.DeviceTopic)
			continue
		}

		g := d.groups.ForPoint(p.Topic)
		if g == nil {
			res.Errors[p.Topic] = fmt.Errorf("%w: %s", point.ErrUnknownPoint, p.Topic)
			continue
		}

		if err := g.Begin(ctx); err != nil {
			res.Errors[p.Topic] = err
			continue
		}
		revertErr := g.Revert(ctx, p.Address)
		g.End()

		if revertErr != nil {
			res.Errors[p.Topic] = fmt.Errorf("revert %s: %w", p.Topic, revertErr)
			continue
		}

		if p.Default != nil {
			d.cache.Put(p.Topic, p.Default, d.clock.Now())
			res.Values[p.Topic] = p.Default
		} else {
			res.Values[p.Topic] = nil
		}
		d.logger.Info("point reverted", "topic", p.Topic)
	}
	return res, nil
}

// Last serves the resolved points from the cache without touching any
// remote. includeValue and includeUpdated trim the returned entries; points
// never observed are reported in the error map.
func (d *Dispatcher) Last(selectors []string, pattern string, includeValue, includeUpdated bool) (map[string]LastEntry, map[string]error, error) {
	points, err := d.resolve(selectors, pattern)
	if err != nil {
		return nil, nil, err
	}

	entries := make(map[string]LastEntry, len(points))
	errs := make(map[string]error)
	for _, p := range points {
		value, updated, present := d.cache.Get(p.Topic)
		if !present {
			errs[p.Topic] = fmt.Errorf("%w: %s", ErrNeverObserved, p.Topic)
			continue
		}
		entry := LastEntry{}
		if includeValue {
			entry.Value = value
		}
		if includeUpdated {
			entry.Updated = updated
		}
		entries[p.Topic] = entry
	}
	return entries, errs, nil
}

// groupMembers partitions points by owning group. Points with no group are
// recorded as errors directly.
func groupMembers(groups *remote.Groups, points []*point.Point, res Result) map[*remote.Group][]*point.Point {
	byGroup := make(map[*remote.Group][]*point.Point)
	for _, p := range points {
		g := groups.ForPoint(p.Topic)
		if g == nil {
			res.Errors[p.Topic] = fmt.Errorf("%w: %s", point.ErrUnknownPoint, p.Topic)
			continue
		}
		byGroup[g] = append(byGroup[g], p)
	}
	return byGroup
}
