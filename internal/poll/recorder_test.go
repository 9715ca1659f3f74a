package poll

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

type capturedReading struct {
	device string
	name   string
	value  any
}

type captureWriter struct {
	readings []capturedReading
	stats    []string
}

func (w *captureWriter) WritePointReading(deviceTopic, pointName string, value any, timestamp time.Time) {
	w.readings = append(w.readings, capturedReading{device: deviceTopic, name: pointName, value: value})
}

func (w *captureWriter) WritePollStats(groupID string, updated, failed int, timestamp time.Time) {
	w.stats = append(w.stats, groupID)
}

func TestRecorderForwardsReadings(t *testing.T) {
	devices := []config.DeviceConfig{{
		Topic:  "devices/Campus/Building1/AHU1",
		Driver: config.DriverConfig{Type: "sim"},
		Points: []config.PointConfig{{Name: "SupplyAirTemperature"}},
	}}
	reg, err := point.NewRegistry(point.Defaults{PollingInterval: 60 * time.Second, StaleMultiplier: 3}, devices)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	writer := &captureWriter{}
	rec := NewRecorder(reg, writer)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec.HandleCompletion(Completion{
		GroupID: "sim|host=h",
		Updated: map[string]point.Reading{
			"devices/Campus/Building1/AHU1/SupplyAirTemperature": {Value: 21.5, Updated: now},
			"devices/Campus/Building9/Ghost/Point":               {Value: 1, Updated: now},
		},
		Failed: map[string]error{
			"devices/Campus/Building1/AHU1/FanStatus": errors.New("bad register"),
		},
		Time: now,
	})

	if len(writer.readings) != 1 {
		t.Fatalf("expected one forwarded reading, got %d", len(writer.readings))
	}
	r := writer.readings[0]
	if r.device != "devices/Campus/Building1/AHU1" || r.name != "SupplyAirTemperature" || r.value != 21.5 {
		t.Errorf("unexpected reading: %+v", r)
	}
	if len(writer.stats) != 1 || writer.stats[0] != "sim|host=h" {
		t.Errorf("unexpected stats: %v", writer.stats)
	}
}
