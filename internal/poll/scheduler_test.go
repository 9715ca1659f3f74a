package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
	"github.com/fieldpoint/fieldpoint-core/internal/remote"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type scriptedDriver struct {
	mu       sync.Mutex
	values   map[string]any
	addrErrs map[string]error
	readErr  error
	ts       time.Time
	reads    int
}

func (d *scriptedDriver) Read(ctx context.Context, desc config.DriverConfig, addresses []string) (map[string]remote.Reading, map[string]error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.readErr != nil {
		return nil, nil, d.readErr
	}
	values := make(map[string]remote.Reading)
	errs := make(map[string]error)
	for _, addr := range addresses {
		if err, ok := d.addrErrs[addr]; ok {
			errs[addr] = err
			continue
		}
		if v, ok := d.values[addr]; ok {
			values[addr] = remote.Reading{Value: v, Timestamp: d.ts}
		}
	}
	return values, errs, nil
}

func (d *scriptedDriver) Write(ctx context.Context, desc config.DriverConfig, address string, value any) error {
	return nil
}

func (d *scriptedDriver) Revert(ctx context.Context, desc config.DriverConfig, address string) error {
	return nil
}

func (d *scriptedDriver) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

type schedFixture struct {
	sched  *Scheduler
	groups *remote.Groups
	cache  *point.Cache
	clock  *fakeClock
	driver *scriptedDriver

	mu          sync.Mutex
	completions []Completion
}

func newSchedFixture(t *testing.T) *schedFixture {
	t.Helper()
	devices := []config.DeviceConfig{{
		Topic:  "devices/Campus/Building1/AHU1",
		Driver: config.DriverConfig{Type: "sim", Params: map[string]string{"host": "h"}},
		Points: []config.PointConfig{
			{Name: "SupplyAirTemperature", PollingInterval: 10},
			{Name: "FanStatus", PollingInterval: 30},
		},
	}}
	reg, err := point.NewRegistry(point.Defaults{PollingInterval: 60 * time.Second, StaleMultiplier: 3}, devices)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	driver := &scriptedDriver{
		values: map[string]any{"SupplyAirTemperature": 21.5, "FanStatus": true},
		ts:     start,
	}
	groups, err := remote.BuildGroups(reg, map[string]remote.Driver{"sim": driver}, config.BreakerConfig{
		ConsecutiveFailures: 3,
		OpenFor:             30,
	})
	if err != nil {
		t.Fatalf("BuildGroups failed: %v", err)
	}
	cache := point.NewCache(reg.Points())

	f := &schedFixture{
		groups: groups,
		cache:  cache,
		clock:  clock,
		driver: driver,
	}
	f.sched = New(Config{TickInterval: time.Second, MaxConcurrent: 4}, groups, cache)
	f.sched.SetClock(clock)
	f.sched.OnCompletion(func(c Completion) {
		f.mu.Lock()
		f.completions = append(f.completions, c)
		f.mu.Unlock()
	})
	return f
}

// cycle runs one scheduling pass and waits for its poll tasks to finish.
func (f *schedFixture) cycle() {
	f.sched.runCycle(context.Background())
	f.sched.wg.Wait()
}

func (f *schedFixture) completed() []Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Completion, len(f.completions))
	copy(out, f.completions)
	return out
}

func TestSchedulerPollsDuePoints(t *testing.T) {
	f := newSchedFixture(t)

	f.cycle()

	value, _, present := f.cache.Get("devices/Campus/Building1/AHU1/SupplyAirTemperature")
	if !present || value != 21.5 {
		t.Fatalf("expected cached 21.5, got %v (present=%v)", value, present)
	}
	if _, _, present := f.cache.Get("devices/Campus/Building1/AHU1/FanStatus"); !present {
		t.Fatal("expected never-polled point to be due on the first cycle")
	}

	comps := f.completed()
	if len(comps) != 1 {
		t.Fatalf("expected one completion, got %d", len(comps))
	}
	if len(comps[0].Updated) != 2 || len(comps[0].Failed) != 0 {
		t.Errorf("expected 2 updated 0 failed, got %d/%d", len(comps[0].Updated), len(comps[0].Failed))
	}
}

func TestSchedulerHonoursIntervals(t *testing.T) {
	f := newSchedFixture(t)

	f.cycle()
	if n := f.driver.readCount(); n != 1 {
		t.Fatalf("expected 1 read, got %d", n)
	}

	// Nothing is due 5s in.
	f.clock.Advance(5 * time.Second)
	f.cycle()
	if n := f.driver.readCount(); n != 1 {
		t.Fatalf("expected no read before any interval elapses, got %d", n)
	}

	// 10s in, only the fast point is due.
	f.clock.Advance(5 * time.Second)
	f.cycle()
	if n := f.driver.readCount(); n != 2 {
		t.Fatalf("expected a second read at 10s, got %d", n)
	}
	comps := f.completed()
	last := comps[len(comps)-1]
	if len(last.Updated) != 1 {
		t.Errorf("expected only the 10s point in the second task, got %v", last.Updated)
	}
	if _, ok := last.Updated["devices/Campus/Building1/AHU1/SupplyAirTemperature"]; !ok {
		t.Errorf("expected SupplyAirTemperature in the second task, got %v", last.Updated)
	}
}

func TestSchedulerSkipsBusyGroup(t *testing.T) {
	f := newSchedFixture(t)

	g := f.groups.All()[0]
	if !g.TryBegin() {
		t.Fatal("TryBegin failed")
	}
	f.cycle()
	if n := f.driver.readCount(); n != 0 {
		t.Fatalf("busy group must be skipped, got %d reads", n)
	}
	g.End()

	// The due points remain due and are picked up next cycle.
	f.cycle()
	if n := f.driver.readCount(); n != 1 {
		t.Fatalf("expected the skipped points polled after release, got %d reads", n)
	}
}

func TestSchedulerWholeRemoteFailure(t *testing.T) {
	f := newSchedFixture(t)
	f.driver.readErr = errors.New("connection refused")

	f.cycle()

	if _, _, present := f.cache.Get("devices/Campus/Building1/AHU1/SupplyAirTemperature"); present {
		t.Error("whole-remote failure must not touch the cache")
	}
	if len(f.completed()) != 0 {
		t.Error("whole-remote failure must not produce a completion")
	}

	// No stamps were recorded, so the points stay due and the next cycle
	// retries at the tick cadence.
	f.driver.mu.Lock()
	f.driver.readErr = nil
	f.driver.mu.Unlock()
	f.cycle()
	if _, _, present := f.cache.Get("devices/Campus/Building1/AHU1/SupplyAirTemperature"); !present {
		t.Error("points must stay due after an unreachable cycle")
	}
}

func TestSchedulerPerPointFailure(t *testing.T) {
	f := newSchedFixture(t)
	f.driver.addrErrs = map[string]error{"FanStatus": errors.New("bad register")}

	f.cycle()

	if _, _, present := f.cache.Get("devices/Campus/Building1/AHU1/SupplyAirTemperature"); !present {
		t.Error("healthy point must still be cached")
	}
	if _, _, present := f.cache.Get("devices/Campus/Building1/AHU1/FanStatus"); present {
		t.Error("failed point must keep its prior (absent) cache state")
	}

	comps := f.completed()
	if len(comps) != 1 {
		t.Fatalf("expected one completion, got %d", len(comps))
	}
	if len(comps[0].Updated) != 1 || len(comps[0].Failed) != 1 {
		t.Fatalf("expected 1 updated 1 failed, got %d/%d", len(comps[0].Updated), len(comps[0].Failed))
	}

	// The failed point was stamped, so it is not retried before its interval.
	f.cycle()
	if n := f.driver.readCount(); n != 1 {
		t.Errorf("failed point must not be retried hot, got %d reads", n)
	}
}

func TestSchedulerIgnoresInactivePoints(t *testing.T) {
	f := newSchedFixture(t)
	for _, g := range f.groups.All() {
		for _, p := range g.Points {
			p.SetActive(false)
		}
	}

	f.cycle()
	if n := f.driver.readCount(); n != 0 {
		t.Errorf("inactive points must never be polled, got %d reads", n)
	}
}
