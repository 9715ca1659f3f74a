package point

import (
	"fmt"
	"sort"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
)

// Defaults are the agent-level fallbacks applied during registry construction.
type Defaults struct {
	// PollingInterval applies to points and devices without their own.
	PollingInterval time.Duration

	// StaleMultiplier computes a stale timeout from a point's interval when
	// neither the point nor its device declares one.
	StaleMultiplier float64

	// AllowDuplicateRemotes is the agent-level deduplication opt-out.
	AllowDuplicateRemotes bool

	// PublishAll enables all-publishes for devices that do not say otherwise.
	PublishAll bool

	// AllPublishInterval is the default all-publish period.
	AllPublishInterval time.Duration
}

// Registry is the immutable set of configured devices and points.
//
// It is built once from configuration and replaced wholesale on reload;
// nothing in it is added or removed during a running session. Mutable
// per-point state (activation, poll stamps) lives inside each Point.
type Registry struct {
	devices  []*Device
	byTopic  map[string]*Point
	byDevice map[string]*Device
	points   []*Point
}

// NewRegistry builds the registry from device definitions, resolving
// intervals, stale timeouts, and publish policy.
//
// Resolution order for each setting: point override, then device default,
// then agent default (the stale timeout computed fallback is
// StaleMultiplier x the point's own resolved interval).
func NewRegistry(defaults Defaults, devices []config.DeviceConfig) (*Registry, error) {
	r := &Registry{
		byTopic:  make(map[string]*Point),
		byDevice: make(map[string]*Device),
	}

	for i := range devices {
		dc := &devices[i]
		devTopic := EquipmentID(dc.Topic)
		if _, exists := r.byDevice[devTopic]; exists {
			return nil, fmt.Errorf("duplicate device topic %q", devTopic)
		}

		allInterval := defaults.AllPublishInterval
		if dc.AllPublishInterval > 0 {
			allInterval = secondsToDuration(dc.AllPublishInterval)
		}

		dev := &Device{
			Topic:                 devTopic,
			Driver:                dc.Driver,
			AllowDuplicateRemotes: dc.DuplicatesAllowed(defaults.AllowDuplicateRemotes),
			PublishAll:            dc.AllPublishEnabled(defaults.PublishAll),
			AllPublishInterval:    allInterval,
		}

		for j := range dc.Points {
			pc := &dc.Points[j]
			p, err := buildPoint(defaults, dc, pc, devTopic)
			if err != nil {
				return nil, err
			}
			if _, exists := r.byTopic[p.Topic]; exists {
				return nil, fmt.Errorf("duplicate point topic %q", p.Topic)
			}
			r.byTopic[p.Topic] = p
			r.points = append(r.points, p)
			dev.Points = append(dev.Points, p)
		}

		r.devices = append(r.devices, dev)
		r.byDevice[devTopic] = dev
	}

	sort.Slice(r.points, func(i, j int) bool { return r.points[i].Topic < r.points[j].Topic })

	return r, nil
}

func buildPoint(defaults Defaults, dc *config.DeviceConfig, pc *config.PointConfig, devTopic string) (*Point, error) {
	interval := defaults.PollingInterval
	if dc.PollingInterval > 0 {
		interval = secondsToDuration(dc.PollingInterval)
	}
	if pc.PollingInterval > 0 {
		interval = secondsToDuration(pc.PollingInterval)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("point %s/%s: no usable polling interval", devTopic, pc.Name)
	}

	// Stale timeout: point override wins, device default second, computed last.
	stale := time.Duration(defaults.StaleMultiplier * float64(interval))
	if dc.StaleTimeout > 0 {
		stale = secondsToDuration(dc.StaleTimeout)
	}
	if pc.StaleTimeout > 0 {
		stale = secondsToDuration(pc.StaleTimeout)
	}

	address := pc.Address
	if address == "" {
		address = pc.Name
	}

	active := true
	if pc.Active != nil {
		active = *pc.Active
	}

	return &Point{
		Topic:        devTopic + "/" + pc.Name,
		Name:         pc.Name,
		DeviceTopic:  devTopic,
		Address:      address,
		Interval:     interval,
		StaleTimeout: stale,
		Writable:     pc.Writable,
		Default:      pc.Default,
		Units:        pc.Units,
		active:       active,
	}, nil
}

// Devices returns all configured devices.
func (r *Registry) Devices() []*Device {
	return r.devices
}

// Device returns the device with the given topic, or nil.
func (r *Registry) Device(topic string) *Device {
	return r.byDevice[EquipmentID(topic)]
}

// Points returns all configured points in topic order.
func (r *Registry) Points() []*Point {
	return r.points
}

// Point returns the point with the given topic, or nil.
func (r *Registry) Point(topic string) *Point {
	return r.byTopic[EquipmentID(topic)]
}

// Len returns the number of configured points.
func (r *Registry) Len() int {
	return len(r.points)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
