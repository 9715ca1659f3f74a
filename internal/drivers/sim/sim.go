// Package sim provides an in-process simulated driver.
//
// It stands in for a real protocol driver (BACnet, Modbus) during
// development and testing: each descriptor key gets its own simulated remote
// whose registers are seeded from the point registry. Writable registers
// remember written values and revert to their configured defaults; read-only
// registers ramp on every read so polled data visibly changes.
//
// Fault injection (SetUnreachable, FailAddress) lets tests exercise
// whole-remote and per-point failure paths.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
	"github.com/fieldpoint/fieldpoint-core/internal/remote"
)

// DriverType is the driver.type value that selects this driver.
const DriverType = "sim"

type register struct {
	value    any
	def      any
	writable bool
}

type simRemote struct {
	registers   map[string]*register
	unreachable bool
}

// Driver simulates one or more remotes, keyed by connection descriptor.
//
// Thread Safety: all methods are safe for concurrent use.
type Driver struct {
	mu      sync.Mutex
	remotes map[string]*simRemote

	// Latency is added to every request, for exercising slow remotes.
	Latency time.Duration

	// clock is overridable in tests.
	clock func() time.Time
}

// New creates an empty simulated driver.
func New() *Driver {
	return &Driver{
		remotes: make(map[string]*simRemote),
		clock:   time.Now,
	}
}

// Seed creates simulated registers for every point of every device in the
// registry that uses this driver. Defaults come from the point configuration;
// a point without a default starts at 0.0.
func (d *Driver) Seed(reg *point.Registry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, dev := range reg.Devices() {
		if dev.Driver.Type != DriverType {
			continue
		}
		r := d.remoteLocked(dev.Driver)
		for _, p := range dev.Points {
			def := p.Default
			if def == nil {
				def = 0.0
			}
			r.registers[p.Address] = &register{
				value:    def,
				def:      def,
				writable: p.Writable,
			}
		}
	}
}

// remoteLocked returns (creating if needed) the simulated remote for a
// descriptor. Caller holds d.mu.
func (d *Driver) remoteLocked(desc config.DriverConfig) *simRemote {
	key := remote.DescriptorKey(desc)
	r, ok := d.remotes[key]
	if !ok {
		r = &simRemote{registers: make(map[string]*register)}
		d.remotes[key] = r
	}
	return r
}

// SetUnreachable marks a remote as down; reads against it fail wholesale.
func (d *Driver) SetUnreachable(desc config.DriverConfig, down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remoteLocked(desc).unreachable = down
}

// FailAddress removes a register so reads of that address report a
// per-point failure without affecting siblings.
func (d *Driver) FailAddress(desc config.DriverConfig, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.remoteLocked(desc).registers, address)
}

// Read implements remote.Driver.
func (d *Driver) Read(ctx context.Context, desc config.DriverConfig, addresses []string) (map[string]remote.Reading, map[string]error, error) {
	if err := d.wait(ctx); err != nil {
		return nil, nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.remoteLocked(desc)
	if r.unreachable {
		return nil, nil, fmt.Errorf("sim remote %s: connection refused", remote.DescriptorKey(desc))
	}

	now := d.clock()
	values := make(map[string]remote.Reading, len(addresses))
	errs := make(map[string]error)
	for _, addr := range addresses {
		reg, ok := r.registers[addr]
		if !ok {
			errs[addr] = fmt.Errorf("sim: no such register %q", addr)
			continue
		}
		if !reg.writable {
			// Read-only registers ramp so successive polls observe change.
			if f, isFloat := reg.value.(float64); isFloat {
				reg.value = f + 1.0
			}
		}
		values[addr] = remote.Reading{Value: reg.value, Timestamp: now}
	}
	return values, errs, nil
}

// Write implements remote.Driver.
func (d *Driver) Write(ctx context.Context, desc config.DriverConfig, address string, value any) error {
	if err := d.wait(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.remoteLocked(desc)
	if r.unreachable {
		return fmt.Errorf("sim remote %s: connection refused", remote.DescriptorKey(desc))
	}
	reg, ok := r.registers[address]
	if !ok {
		return fmt.Errorf("sim: no such register %q", address)
	}
	if !reg.writable {
		return fmt.Errorf("sim: register %q is read-only", address)
	}
	reg.value = value
	return nil
}

// Revert implements remote.Driver.
func (d *Driver) Revert(ctx context.Context, desc config.DriverConfig, address string) error {
	if err := d.wait(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.remoteLocked(desc)
	if r.unreachable {
		return fmt.Errorf("sim remote %s: connection refused", remote.DescriptorKey(desc))
	}
	reg, ok := r.registers[address]
	if !ok {
		return fmt.Errorf("sim: no such register %q", address)
	}
	reg.value = reg.def
	return nil
}

// wait applies the configured latency, honouring cancellation.
func (d *Driver) wait(ctx context.Context) error {
	if d.Latency <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	select {
	case <-time.After(d.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
