package point

import (
	"testing"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
)

func testDefaults() Defaults {
	return Defaults{
		PollingInterval:    60 * time.Second,
		StaleMultiplier:    3,
		PublishAll:         true,
		AllPublishInterval: 300 * time.Second,
	}
}

func testDevices() []config.DeviceConfig {
	return []config.DeviceConfig{
		{
			Topic:           "devices/Campus/Building1/AHU1",
			Driver:          config.DriverConfig{Type: "sim", Params: map[string]string{"host": "h1"}},
			PollingInterval: 10,
			Points: []config.PointConfig{
				{Name: "SupplyAirTemperature", Address: "30001"},
				{Name: "ZoneTemperatureSetPoint", Address: "40001", Writable: true, Default: 21.0, PollingInterval: 30},
			},
		},
		{
			Topic:  "devices/Campus/Building1/AHU2",
			Driver: config.DriverConfig{Type: "sim", Params: map[string]string{"host": "h1"}},
			Points: []config.PointConfig{
				{Name: "ZoneTemperatureSetPoint", Address: "40011", Writable: true, StaleTimeout: 600},
			},
		},
	}
}

func TestNewRegistryResolvesIntervals(t *testing.T) {
	reg, err := NewRegistry(testDefaults(), testDevices())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	supply := reg.Point("devices/Campus/Building1/AHU1/SupplyAirTemperature")
	if supply == nil {
		t.Fatal("expected supply point to exist")
	}
	if supply.Interval != 10*time.Second {
		t.Errorf("expected device interval 10s, got %v", supply.Interval)
	}
	if supply.StaleTimeout != 30*time.Second {
		t.Errorf("expected computed stale timeout 30s, got %v", supply.StaleTimeout)
	}

	setpoint := reg.Point("devices/Campus/Building1/AHU1/ZoneTemperatureSetPoint")
	if setpoint.Interval != 30*time.Second {
		t.Errorf("expected point override 30s, got %v", setpoint.Interval)
	}
	if setpoint.StaleTimeout != 90*time.Second {
		t.Errorf("expected stale timeout 3x interval = 90s, got %v", setpoint.StaleTimeout)
	}
	if !setpoint.Writable {
		t.Error("expected setpoint to be writable")
	}

	// AHU2 has no device interval; the agent default applies, and the
	// explicit stale timeout wins over the computed one.
	ahu2 := reg.Point("devices/Campus/Building1/AHU2/ZoneTemperatureSetPoint")
	if ahu2.Interval != 60*time.Second {
		t.Errorf("expected agent default 60s, got %v", ahu2.Interval)
	}
	if ahu2.StaleTimeout != 600*time.Second {
		t.Errorf("expected explicit stale timeout 600s, got %v", ahu2.StaleTimeout)
	}
}

func TestNewRegistryRejectsDuplicateDevices(t *testing.T) {
	devices := testDevices()
	devices[1].Topic = devices[0].Topic
	if _, err := NewRegistry(testDefaults(), devices); err == nil {
		t.Fatal("expected duplicate device topic error")
	}
}

func TestRegistryTopicNormalisation(t *testing.T) {
	reg, err := NewRegistry(testDefaults(), testDevices())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	// Lookups without the devices/ root resolve the same node.
	p := reg.Point("Campus/Building1/AHU1/SupplyAirTemperature")
	if p == nil {
		t.Fatal("expected rootless lookup to resolve")
	}
	d := reg.Device("Campus/Building1/AHU1")
	if d == nil {
		t.Fatal("expected rootless device lookup to resolve")
	}
}

func TestPointDue(t *testing.T) {
	reg, err := NewRegistry(testDefaults(), testDevices())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	p := reg.Point("devices/Campus/Building1/AHU1/SupplyAirTemperature")

	now := time.Now()
	if !p.Due(now) {
		t.Error("expected never-polled point to be due")
	}

	p.StampAttempt(now)
	if p.Due(now.Add(5 * time.Second)) {
		t.Error("expected point not due before interval elapses")
	}
	if !p.Due(now.Add(10 * time.Second)) {
		t.Error("expected point due after interval elapses")
	}

	p.SetActive(false)
	if p.Due(now.Add(time.Hour)) {
		t.Error("expected inactive point never due")
	}
}
