package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

// fakeDriver scripts per-address read results and records writes.
type fakeDriver struct {
	values   map[string]any
	addrErrs map[string]error
	readErr  error
	reads    int
	writes   map[string]any
	reverts  []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		values: make(map[string]any),
		writes: make(map[string]any),
	}
}

func (d *fakeDriver) Read(ctx context.Context, desc config.DriverConfig, addresses []string) (map[string]Reading, map[string]error, error) {
	d.reads++
	if d.readErr != nil {
		return nil, nil, d.readErr
	}
	values := make(map[string]Reading)
	errs := make(map[string]error)
	for _, addr := range addresses {
		if err, ok := d.addrErrs[addr]; ok {
			errs[addr] = err
			continue
		}
		if v, ok := d.values[addr]; ok {
			values[addr] = Reading{Value: v}
		}
	}
	return values, errs, nil
}

func (d *fakeDriver) Write(ctx context.Context, desc config.DriverConfig, address string, value any) error {
	d.writes[address] = value
	return nil
}

func (d *fakeDriver) Revert(ctx context.Context, desc config.DriverConfig, address string) error {
	d.reverts = append(d.reverts, address)
	return nil
}

func buildTestGroups(t *testing.T, devices []config.DeviceConfig) (*Groups, *fakeDriver) {
	t.Helper()
	reg, err := point.NewRegistry(point.Defaults{
		PollingInterval: 60 * time.Second,
		StaleMultiplier: 3,
	}, devices)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	driver := newFakeDriver()
	groups, err := BuildGroups(reg, map[string]Driver{"sim": driver}, config.BreakerConfig{
		ConsecutiveFailures: 3,
		OpenFor:             30,
	})
	if err != nil {
		t.Fatalf("BuildGroups failed: %v", err)
	}
	return groups, driver
}

func sharedDescriptorDevices() []config.DeviceConfig {
	desc := config.DriverConfig{Type: "sim", Params: map[string]string{"host": "10.0.0.5:502"}}
	return []config.DeviceConfig{
		{
			Topic:  "devices/Campus/Building1/AHU1",
			Driver: desc,
			Points: []config.PointConfig{{Name: "SupplyAirTemperature"}},
		},
		{
			Topic:  "devices/Campus/Building1/AHU2",
			Driver: desc,
			Points: []config.PointConfig{{Name: "SupplyAirTemperature"}},
		},
	}
}

func TestBuildGroupsDeduplicatesEqualDescriptors(t *testing.T) {
	groups, _ := buildTestGroups(t, sharedDescriptorDevices())

	if groups.Len() != 1 {
		t.Fatalf("expected one shared group, got %d", groups.Len())
	}
	g := groups.All()[0]
	if len(g.Points) != 2 {
		t.Errorf("expected both devices' points in the group, got %d", len(g.Points))
	}

	g1 := groups.ForPoint("devices/Campus/Building1/AHU1/SupplyAirTemperature")
	g2 := groups.ForPoint("devices/Campus/Building1/AHU2/SupplyAirTemperature")
	if g1 == nil || g1 != g2 {
		t.Error("points on the same remote must share a group")
	}
}

func TestBuildGroupsRespectsDuplicateOptOut(t *testing.T) {
	devices := sharedDescriptorDevices()
	optOut := true
	devices[1].AllowDuplicateRemotes = &optOut

	groups, _ := buildTestGroups(t, devices)

	if groups.Len() != 2 {
		t.Fatalf("expected opted-out device in its own group, got %d groups", groups.Len())
	}
	g1 := groups.ForPoint("devices/Campus/Building1/AHU1/SupplyAirTemperature")
	g2 := groups.ForPoint("devices/Campus/Building1/AHU2/SupplyAirTemperature")
	if g1 == g2 {
		t.Error("opted-out device must not share a group")
	}
}

func TestBuildGroupsSplitsDifferentDescriptors(t *testing.T) {
	devices := sharedDescriptorDevices()
	devices[1].Driver = config.DriverConfig{Type: "sim", Params: map[string]string{"host": "10.0.0.6:502"}}

	groups, _ := buildTestGroups(t, devices)

	if groups.Len() != 2 {
		t.Fatalf("expected two groups for distinct remotes, got %d", groups.Len())
	}
}

func TestBuildGroupsUnknownDriver(t *testing.T) {
	devices := []config.DeviceConfig{{
		Topic:  "devices/Campus/Building1/AHU1",
		Driver: config.DriverConfig{Type: "bacnet"},
		Points: []config.PointConfig{{Name: "SupplyAirTemperature"}},
	}}
	reg, err := point.NewRegistry(point.Defaults{PollingInterval: 60 * time.Second, StaleMultiplier: 3}, devices)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	_, err = BuildGroups(reg, map[string]Driver{"sim": newFakeDriver()}, config.BreakerConfig{})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestDescriptorKeyOrderIndependent(t *testing.T) {
	a := config.DriverConfig{Type: "sim", Params: map[string]string{"host": "h", "unit": "1"}}
	b := config.DriverConfig{Type: "sim", Params: map[string]string{"unit": "1", "host": "h"}}
	if DescriptorKey(a) != DescriptorKey(b) {
		t.Error("keys for structurally equal descriptors must match")
	}

	c := config.DriverConfig{Type: "sim", Params: map[string]string{"host": "h", "unit": "2"}}
	if DescriptorKey(a) == DescriptorKey(c) {
		t.Error("keys for different descriptors must differ")
	}
}
