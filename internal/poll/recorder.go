package poll

import (
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

// ReadingWriter receives polled observations for historical storage.
type ReadingWriter interface {
	WritePointReading(deviceTopic, pointName string, value any, timestamp time.Time)
	WritePollStats(groupID string, updated, failed int, timestamp time.Time)
}

// Recorder forwards poll completions to a history store. It holds the
// registry only to split topics into device and point name tags.
type Recorder struct {
	registry *point.Registry
	writer   ReadingWriter
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(registry *point.Registry, writer ReadingWriter) *Recorder {
	return &Recorder{registry: registry, writer: writer}
}

// HandleCompletion is the scheduler completion handler.
func (r *Recorder) HandleCompletion(c Completion) {
	for topic, reading := range c.Updated {
		p := r.registry.Point(topic)
		if p == nil {
			continue
		}
		r.writer.WritePointReading(p.DeviceTopic, p.Name, reading.Value, reading.Updated)
	}
	r.writer.WritePollStats(c.GroupID, len(c.Updated), len(c.Failed), c.Time)
}
