package sim

import (
	"context"
	"testing"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

func seededDriver(t *testing.T) (*Driver, config.DriverConfig) {
	t.Helper()
	desc := config.DriverConfig{Type: DriverType, Params: map[string]string{"host": "10.0.0.5:502"}}
	devices := []config.DeviceConfig{{
		Topic:  "devices/Campus/Building1/AHU1",
		Driver: desc,
		Points: []config.PointConfig{
			{Name: "SupplyAirTemperature"},
			{Name: "ZoneTemperatureSetPoint", Writable: true, Default: 21.0},
		},
	}}
	reg, err := point.NewRegistry(point.Defaults{PollingInterval: 60 * time.Second, StaleMultiplier: 3}, devices)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	d := New()
	d.Seed(reg)
	return d, desc
}

func TestSeededDefaults(t *testing.T) {
	d, desc := seededDriver(t)

	values, errs, err := d.Read(context.Background(), desc, []string{"ZoneTemperatureSetPoint"})
	if err != nil || len(errs) != 0 {
		t.Fatalf("Read failed: %v %v", err, errs)
	}
	if values["ZoneTemperatureSetPoint"].Value != 21.0 {
		t.Errorf("expected seeded default 21.0, got %v", values["ZoneTemperatureSetPoint"].Value)
	}
}

func TestReadOnlyRegistersRamp(t *testing.T) {
	d, desc := seededDriver(t)

	first, _, err := d.Read(context.Background(), desc, []string{"SupplyAirTemperature"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	second, _, err := d.Read(context.Background(), desc, []string{"SupplyAirTemperature"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if second["SupplyAirTemperature"].Value.(float64) <= first["SupplyAirTemperature"].Value.(float64) {
		t.Errorf("read-only register must ramp: %v then %v",
			first["SupplyAirTemperature"].Value, second["SupplyAirTemperature"].Value)
	}
}

func TestWriteAndRevert(t *testing.T) {
	d, desc := seededDriver(t)
	ctx := context.Background()

	if err := d.Write(ctx, desc, "ZoneTemperatureSetPoint", 23.5); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	values, _, _ := d.Read(ctx, desc, []string{"ZoneTemperatureSetPoint"})
	if values["ZoneTemperatureSetPoint"].Value != 23.5 {
		t.Fatalf("expected written value held, got %v", values["ZoneTemperatureSetPoint"].Value)
	}

	if err := d.Revert(ctx, desc, "ZoneTemperatureSetPoint"); err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	values, _, _ = d.Read(ctx, desc, []string{"ZoneTemperatureSetPoint"})
	if values["ZoneTemperatureSetPoint"].Value != 21.0 {
		t.Errorf("expected default after revert, got %v", values["ZoneTemperatureSetPoint"].Value)
	}
}

func TestWriteReadOnlyRegisterFails(t *testing.T) {
	d, desc := seededDriver(t)

	if err := d.Write(context.Background(), desc, "SupplyAirTemperature", 1.0); err == nil {
		t.Fatal("expected write to a read-only register to fail")
	}
}

func TestSetUnreachable(t *testing.T) {
	d, desc := seededDriver(t)
	d.SetUnreachable(desc, true)

	if _, _, err := d.Read(context.Background(), desc, []string{"SupplyAirTemperature"}); err == nil {
		t.Fatal("expected whole-remote failure while unreachable")
	}

	d.SetUnreachable(desc, false)
	if _, _, err := d.Read(context.Background(), desc, []string{"SupplyAirTemperature"}); err != nil {
		t.Fatalf("expected recovery after clearing, got %v", err)
	}
}

func TestFailAddress(t *testing.T) {
	d, desc := seededDriver(t)
	d.FailAddress(desc, "SupplyAirTemperature")

	values, errs, err := d.Read(context.Background(), desc,
		[]string{"SupplyAirTemperature", "ZoneTemperatureSetPoint"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if errs["SupplyAirTemperature"] == nil {
		t.Error("expected a per-point failure for the removed register")
	}
	if _, ok := values["ZoneTemperatureSetPoint"]; !ok {
		t.Error("sibling register must still read")
	}
}

func TestReadHonoursCancellation(t *testing.T) {
	d, desc := seededDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := d.Read(ctx, desc, []string{"SupplyAirTemperature"}); err == nil {
		t.Fatal("expected a cancelled context to fail the read")
	}
}
