package point

import (
	"strings"
	"sync"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
)

// Root is the first segment of every point and device topic.
const Root = "devices"

// Point is one individually addressable value on a remote.
//
// Identity and policy fields are fixed at registry build time. Polling state
// (activation, last request stamp) is mutable and guarded by the point's own
// mutex so the scheduler and API can touch different points without contention.
type Point struct {
	// Topic is the full hierarchical path, e.g.
	// "devices/Campus/Building1/AHU1/ZoneTemperature".
	Topic string

	// Name is the final topic segment.
	Name string

	// DeviceTopic is the owning device's path (Topic minus the final segment).
	DeviceTopic string

	// Address is the driver-level address used in read/write requests.
	Address string

	// Interval is the resolved polling interval for this point.
	Interval time.Duration

	// StaleTimeout is the resolved staleness window for this point.
	StaleTimeout time.Duration

	// Writable marks the point as settable.
	Writable bool

	// Default is the configured revert target, if any.
	Default any

	// Units is informational metadata.
	Units string

	mu            sync.Mutex
	active        bool
	lastRequested time.Time
}

// Active reports whether the scheduler should poll this point.
func (p *Point) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetActive changes the point's activation state.
func (p *Point) SetActive(v bool) {
	p.mu.Lock()
	p.active = v
	p.mu.Unlock()
}

// Due reports whether the point's interval has elapsed since the last
// poll attempt. Inactive points are never due.
func (p *Point) Due(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return false
	}
	return now.Sub(p.lastRequested) >= p.Interval
}

// StampAttempt records a poll attempt so the point is not retried before its
// interval elapses again. Called for every point included in a poll task,
// whether or not the read succeeded.
func (p *Point) StampAttempt(now time.Time) {
	p.mu.Lock()
	p.lastRequested = now
	p.mu.Unlock()
}

// LastRequested returns the time of the most recent poll attempt.
func (p *Point) LastRequested() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRequested
}

// Device is a configured remote with its points and publish policy.
type Device struct {
	// Topic is the device path, e.g. "devices/Campus/Building1/AHU1".
	Topic string

	// Driver is the connection descriptor used to reach the remote.
	Driver config.DriverConfig

	// AllowDuplicateRemotes opts the device out of descriptor deduplication.
	AllowDuplicateRemotes bool

	// PublishAll enables the periodic all-publish for this device.
	PublishAll bool

	// AllPublishInterval is the resolved all-publish period.
	AllPublishInterval time.Duration

	Points []*Point
}

// EquipmentID normalises a topic path: trims slashes and prefixes the
// devices root when missing. "Campus/B1/AHU1" and "devices/Campus/B1/AHU1"
// address the same node.
func EquipmentID(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return Root
	}
	if path != Root && !strings.HasPrefix(path, Root+"/") {
		path = Root + "/" + path
	}
	return path
}
