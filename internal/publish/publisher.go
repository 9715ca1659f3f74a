package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/metrics"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
	"github.com/fieldpoint/fieldpoint-core/internal/poll"
)

// Sink receives rendered publications. The MQTT client and the websocket
// hub both satisfy this.
type Sink interface {
	Publish(topic string, payload []byte) error
}

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PointValue is the wire form of one point inside a publication payload.
type PointValue struct {
	Value   any    `json:"value"`
	Updated string `json:"updated"`
}

// deviceState tracks per-device publication progress.
type deviceState struct {
	device *point.Device

	// observed holds the topics of points read successfully at least once
	// since start. The all-publish stays silent until it covers the device.
	observed map[string]struct{}

	// roundComplete latches once observed covers every active point.
	roundComplete bool

	nextAll time.Time
}

// Publisher turns poll completions into outbound publications.
//
// Every completed poll task produces a multi-publish on the owning device's
// topic carrying exactly the points that were read. Devices with the
// all-publish enabled additionally emit a periodic full snapshot, gated on
// one complete round of successful reads and suppressed wholesale while any
// of the device's points is stale.
type Publisher struct {
	registry *point.Registry
	cache    *point.Cache
	clock    poll.Clock
	logger   Logger

	tick time.Duration

	mu      sync.Mutex
	sinks   []Sink
	devices map[string]*deviceState
}

// New creates a publisher over the registry and cache. The all-publish
// timers start counting from the first Run tick.
func New(registry *point.Registry, cache *point.Cache) *Publisher {
	p := &Publisher{
		registry: registry,
		cache:    cache,
		clock:    nil,
		logger:   noopLogger{},
		tick:     time.Second,
		devices:  make(map[string]*deviceState),
	}
	p.clock = realClock{}
	for _, d := range registry.Devices() {
		p.devices[d.Topic] = &deviceState{
			device:   d,
			observed: make(map[string]struct{}, len(d.Points)),
		}
	}
	return p
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetClock overrides the publisher's clock. Intended for tests.
func (p *Publisher) SetClock(clock poll.Clock) {
	p.clock = clock
}

// AddSink registers an output for rendered publications.
func (p *Publisher) AddSink(s Sink) {
	p.mu.Lock()
	p.sinks = append(p.sinks, s)
	p.mu.Unlock()
}

// HandleCompletion is the scheduler completion handler: it emits one
// multi-publish per device touched by the finished poll task and records
// which points have been observed for the all-publish gate.
func (p *Publisher) HandleCompletion(c poll.Completion) {
	byDevice := make(map[string]map[string]PointValue)

	for topic, reading := range c.Updated {
		pt := p.registry.Point(topic)
		if pt == nil {
			continue
		}
		m, ok := byDevice[pt.DeviceTopic]
		if !ok {
			m = make(map[string]PointValue)
			byDevice[pt.DeviceTopic] = m
		}
		m[pt.Name] = PointValue{
			Value:   reading.Value,
			Updated: reading.Updated.UTC().Format(time.RFC3339Nano),
		}
	}

	p.mu.Lock()
	for topic := range c.Updated {
		pt := p.registry.Point(topic)
		if pt == nil {
			continue
		}
		if state, ok := p.devices[pt.DeviceTopic]; ok {
			state.observed[topic] = struct{}{}
		}
	}
	for deviceTopic := range byDevice {
		if state, ok := p.devices[deviceTopic]; ok {
			p.refreshRound(state)
		}
	}
	sinks := p.snapshot()
	p.mu.Unlock()

	for deviceTopic, values := range byDevice {
		payload, err := json.Marshal(values)
		if err != nil {
			p.logger.Error("multi-publish encode failed", "device", deviceTopic, "error", err)
			continue
		}
		p.emit(sinks, deviceTopic+"/multi", payload)
		metrics.Publishes.WithLabelValues("multi").Inc()
	}
}

// refreshRound latches roundComplete once every active point on the device
// has been observed. Caller holds p.mu.
func (p *Publisher) refreshRound(state *deviceState) {
	if state.roundComplete {
		return
	}
	for _, pt := range state.device.Points {
		if !pt.Active() {
			continue
		}
		if _, ok := state.observed[pt.Topic]; !ok {
			return
		}
	}
	state.roundComplete = true
	p.logger.Debug("first full poll round complete", "device", state.device.Topic)
}

// RoundsComplete reports, per device topic, whether a full round of
// successful reads has been observed since start.
func (p *Publisher) RoundsComplete() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.devices))
	for topic, state := range p.devices {
		out[topic] = state.roundComplete
	}
	return out
}

// Run drives the all-publish timers until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runAllCycle(p.clock.Now())
		}
	}
}

// runAllCycle emits the periodic full snapshot for each due device. A
// suppressed cycle (stale data, incomplete first round) reschedules like a
// published one, so a long outage never piles up missed publications.
func (p *Publisher) runAllCycle(now time.Time) {
	type pending struct {
		topic   string
		payload []byte
	}
	var out []pending

	p.mu.Lock()
	sinks := p.snapshot()
	for _, state := range p.devices {
		d := state.device
		if !d.PublishAll || d.AllPublishInterval <= 0 {
			continue
		}
		if state.nextAll.IsZero() {
			state.nextAll = now.Add(d.AllPublishInterval)
			continue
		}
		if now.Before(state.nextAll) {
			continue
		}
		state.nextAll = now.Add(d.AllPublishInterval)

		if !state.roundComplete {
			continue
		}
		if stale := p.stalePoint(d, now); stale != "" {
			metrics.AllPublishSuppressed.Inc()
			p.logger.Warn("all-publish suppressed, stale data",
				"device", d.Topic,
				"point", stale,
			)
			continue
		}

		values := make(map[string]PointValue, len(d.Points))
		for _, pt := range d.Points {
			if !pt.Active() {
				continue
			}
			value, updated, present := p.cache.Get(pt.Topic)
			if !present {
				continue
			}
			values[pt.Name] = PointValue{
				Value:   value,
				Updated: updated.UTC().Format(time.RFC3339Nano),
			}
		}
		payload, err := json.Marshal(values)
		if err != nil {
			p.logger.Error("all-publish encode failed", "device", d.Topic, "error", err)
			continue
		}
		out = append(out, pending{topic: d.Topic + "/all", payload: payload})
	}
	p.mu.Unlock()

	for _, pub := range out {
		p.emit(sinks, pub.topic, pub.payload)
		metrics.Publishes.WithLabelValues("all").Inc()
	}
}

// stalePoint returns the topic of the first stale active point on the
// device, or "" when the snapshot is fully fresh.
func (p *Publisher) stalePoint(d *point.Device, now time.Time) string {
	for _, pt := range d.Points {
		if !pt.Active() {
			continue
		}
		if p.cache.IsStale(pt.Topic, now) {
			return pt.Topic
		}
	}
	return ""
}

// snapshot copies the sink list. Caller holds p.mu.
func (p *Publisher) snapshot() []Sink {
	sinks := make([]Sink, len(p.sinks))
	copy(sinks, p.sinks)
	return sinks
}

func (p *Publisher) emit(sinks []Sink, topic string, payload []byte) {
	for _, s := range sinks {
		if err := s.Publish(topic, payload); err != nil {
			p.logger.Error("publish failed", "topic", topic, "error", err)
		}
	}
}
