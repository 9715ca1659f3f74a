package override

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
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

// memStore is an in-memory Store for exercising persistence paths.
type memStore struct {
	mu       sync.Mutex
	patterns map[string]Pattern
}

func newMemStore() *memStore {
	return &memStore{patterns: make(map[string]Pattern)}
}

func (s *memStore) Save(ctx context.Context, p Pattern) error {
	s.mu.Lock()
	s.patterns[p.Pattern] = p
	s.mu.Unlock()
	return nil
}

func (s *memStore) Delete(ctx context.Context, pattern string) error {
	s.mu.Lock()
	delete(s.patterns, pattern)
	s.mu.Unlock()
	return nil
}

func (s *memStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	s.patterns = make(map[string]Pattern)
	s.mu.Unlock()
	return nil
}

func (s *memStore) List(ctx context.Context) ([]Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patterns)
}

func overrideRegistry(t *testing.T) *point.Registry {
	t.Helper()
	devices := []config.DeviceConfig{
		{
			Topic:  "devices/Campus/Building1/AHU1",
			Driver: config.DriverConfig{Type: "sim"},
			Points: []config.PointConfig{{Name: "SupplyAirTemperature"}},
		},
		{
			Topic:  "devices/Campus/Building1/AHU2",
			Driver: config.DriverConfig{Type: "sim"},
			Points: []config.PointConfig{{Name: "SupplyAirTemperature"}},
		},
		{
			Topic:  "devices/Campus/Building2/Meter",
			Driver: config.DriverConfig{Type: "sim"},
			Points: []config.PointConfig{{Name: "Power"}},
		},
	}
	reg, err := point.NewRegistry(point.Defaults{PollingInterval: 60 * time.Second, StaleMultiplier: 3}, devices)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return reg
}

func TestOverrideGlobMatchesAcrossSegments(t *testing.T) {
	m := NewManager(nil, overrideRegistry(t))

	if err := m.Set(context.Background(), "devices/Campus/Building1/*", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !m.IsOverridden("devices/Campus/Building1/AHU1") {
		t.Error("AHU1 must be overridden")
	}
	if !m.IsOverridden("devices/Campus/Building1/AHU2") {
		t.Error("AHU2 must be overridden")
	}
	if m.IsOverridden("devices/Campus/Building2/Meter") {
		t.Error("Building2 must not be overridden")
	}

	devices := m.Devices()
	if len(devices) != 2 {
		t.Errorf("expected 2 blocked devices, got %v", devices)
	}
}

func TestOverrideExactDevice(t *testing.T) {
	m := NewManager(nil, overrideRegistry(t))

	if err := m.Set(context.Background(), "Campus/Building1/AHU1", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !m.IsOverridden("Campus/Building1/AHU1") {
		t.Error("rootless lookup must match")
	}
	if m.IsOverridden("devices/Campus/Building1/AHU2") {
		t.Error("sibling must not be overridden")
	}
}

func TestOverrideQuestionMark(t *testing.T) {
	m := NewManager(nil, overrideRegistry(t))

	if err := m.Set(context.Background(), "devices/Campus/Building1/AHU?", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !m.IsOverridden("devices/Campus/Building1/AHU1") || !m.IsOverridden("devices/Campus/Building1/AHU2") {
		t.Error("? must match a single character")
	}
}

func TestOverrideExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(nil, overrideRegistry(t))
	m.SetClock(clock)

	if err := m.Set(context.Background(), "devices/Campus/Building1/AHU1", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !m.IsOverridden("devices/Campus/Building1/AHU1") {
		t.Fatal("override must be live before expiry")
	}

	clock.Advance(time.Minute)
	if m.IsOverridden("devices/Campus/Building1/AHU1") {
		t.Error("override must lapse at its deadline")
	}
	if len(m.Patterns()) != 0 {
		t.Errorf("expired patterns must not be listed, got %v", m.Patterns())
	}
}

func TestOverridePruneDropsExpiredFromStore(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore()
	m := NewManager(store, overrideRegistry(t))
	m.SetClock(clock)

	if err := m.Set(context.Background(), "devices/Campus/Building1/AHU1", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if store.len() != 1 {
		t.Fatalf("expected pattern persisted, got %d", store.len())
	}

	clock.Advance(2 * time.Minute)
	m.Prune(context.Background())
	if store.len() != 0 {
		t.Errorf("prune must delete expired patterns from the store, got %d", store.len())
	}
}

func TestOverrideLoadDiscardsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore()

	past := clock.now.Add(-time.Hour)
	expired := clock.now.Add(-time.Minute)
	_ = store.Save(context.Background(), Pattern{Pattern: "devices/Campus/Building1/AHU1", CreatedAt: past, ExpiresAt: &expired})
	_ = store.Save(context.Background(), Pattern{Pattern: "devices/Campus/Building2/*", CreatedAt: past})

	m := NewManager(store, overrideRegistry(t))
	m.SetClock(clock)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.IsOverridden("devices/Campus/Building1/AHU1") {
		t.Error("expired persisted pattern must not be restored")
	}
	if !m.IsOverridden("devices/Campus/Building2/Meter") {
		t.Error("indefinite persisted pattern must be restored")
	}
	if store.len() != 1 {
		t.Errorf("expired pattern must be deleted from the store, got %d", store.len())
	}
}

func TestOverrideClear(t *testing.T) {
	m := NewManager(nil, overrideRegistry(t))

	if err := m.Set(context.Background(), "devices/Campus/Building1/AHU1", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Clear(context.Background(), "devices/Campus/Building1/AHU1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if m.IsOverridden("devices/Campus/Building1/AHU1") {
		t.Error("cleared pattern must stop matching")
	}

	if err := m.Clear(context.Background(), "devices/Campus/Building1/AHU1"); !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("expected ErrUnknownPattern, got %v", err)
	}
}

func TestOverrideClearAll(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, overrideRegistry(t))

	_ = m.Set(context.Background(), "devices/Campus/Building1/*", 0)
	_ = m.Set(context.Background(), "devices/Campus/Building2/*", 0)

	if err := m.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if len(m.Patterns()) != 0 {
		t.Errorf("expected no patterns, got %v", m.Patterns())
	}
	if store.len() != 0 {
		t.Errorf("expected empty store, got %d", store.len())
	}
}

func TestOverrideRebuildTracksNewRegistry(t *testing.T) {
	m := NewManager(nil, overrideRegistry(t))
	_ = m.Set(context.Background(), "devices/Campus/*", 0)

	devices := []config.DeviceConfig{{
		Topic:  "devices/Campus/Building3/AHU9",
		Driver: config.DriverConfig{Type: "sim"},
		Points: []config.PointConfig{{Name: "SupplyAirTemperature"}},
	}}
	reg, err := point.NewRegistry(point.Defaults{PollingInterval: 60 * time.Second, StaleMultiplier: 3}, devices)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	m.Rebuild(reg)

	if !m.IsOverridden("devices/Campus/Building3/AHU9") {
		t.Error("pattern must match devices from the replaced registry")
	}
	if m.IsOverridden("devices/Campus/Building1/AHU1") {
		t.Error("devices gone from the registry must no longer match")
	}
}
