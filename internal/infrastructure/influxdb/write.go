package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePointReading records one polled observation. Non-numeric values are
// stored in a string field so mixed-type points do not poison the numeric
// series.
func (c *Client) WritePointReading(deviceTopic, pointName string, value any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	switch v := value.(type) {
	case float64:
		fields["value"] = v
	case float32:
		fields["value"] = float64(v)
	case int:
		fields["value"] = float64(v)
	case int64:
		fields["value"] = float64(v)
	case bool:
		fields["value_bool"] = v
	case string:
		fields["value_str"] = v
	default:
		return
	}

	p := write.NewPoint(
		"point_readings",
		map[string]string{
			"device": deviceTopic,
			"point":  pointName,
		},
		fields,
		timestamp,
	)
	c.writeAPI.WritePoint(p)
}

// WritePollStats records per-task poll outcomes for trend analysis.
func (c *Client) WritePollStats(groupID string, updated, failed int, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(
		"poll_stats",
		map[string]string{
			"group": groupID,
		},
		map[string]interface{}{
			"updated": updated,
			"failed":  failed,
		},
		timestamp,
	)
	c.writeAPI.WritePoint(p)
}
