package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

// State is a group's position in the Idle/Requesting cycle.
type State string

// Group states.
const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
)

// Group is the set of points sharing one deduplicated connection descriptor.
//
// A capacity-1 token channel enforces the at-most-one-in-flight invariant:
// the scheduler claims the token non-blockingly (skipping the group if a
// request is mid-flight), while command-side writes claim it blockingly so
// no two requests ever reach the same physical remote concurrently.
//
// A circuit breaker wraps whole-remote reads. After consecutive unreachable
// failures the breaker opens, providing the minimum retry floor for a dead
// remote without affecting sibling groups.
type Group struct {
	// ID is the canonical descriptor key, suffixed with the device topic for
	// groups whose device opted out of deduplication.
	ID string

	// Descriptor is the connection descriptor shared by the group's points.
	Descriptor config.DriverConfig

	// Points are the member points, across every device on this remote.
	Points []*point.Point

	driver  Driver
	breaker *gobreaker.CircuitBreaker
	token   chan struct{}
}

// NewGroup creates a group around a descriptor and driver.
func NewGroup(id string, desc config.DriverConfig, driver Driver, breakerCfg config.BreakerConfig) *Group {
	failures := breakerCfg.ConsecutiveFailures
	if failures < 1 {
		failures = 1
	}
	openFor := time.Duration(breakerCfg.OpenFor * float64(time.Second))
	if openFor <= 0 {
		openFor = 30 * time.Second
	}

	return &Group{
		ID:         id,
		Descriptor: desc,
		driver:     driver,
		token:      make(chan struct{}, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    id,
			Timeout: openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(failures)
			},
		}),
	}
}

// TryBegin claims the group's request token without blocking. It returns
// false when a request is already in flight (the group is Requesting).
func (g *Group) TryBegin() bool {
	select {
	case g.token <- struct{}{}:
		return true
	default:
		return false
	}
}

// Begin claims the request token, waiting behind any in-flight request.
func (g *Group) Begin(ctx context.Context) error {
	select {
	case g.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End releases the request token, returning the group to Idle.
func (g *Group) End() {
	<-g.token
}

// State reports the group's current scheduling state.
func (g *Group) State() State {
	if len(g.token) > 0 {
		return StateRequesting
	}
	return StateIdle
}

// Read performs a batched read of the given addresses through the circuit
// breaker. The caller must hold the request token (TryBegin/Begin).
//
// A whole-remote failure is reported as ErrUnreachable; while the breaker is
// open the same error is returned immediately without touching the remote.
func (g *Group) Read(ctx context.Context, addresses []string) (map[string]Reading, map[string]error, error) {
	type readResult struct {
		values map[string]Reading
		errs   map[string]error
	}

	res, err := g.breaker.Execute(func() (any, error) {
		values, errs, err := g.driver.Read(ctx, g.Descriptor, addresses)
		if err != nil {
			return nil, err
		}
		return readResult{values: values, errs: errs}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, fmt.Errorf("%w: breaker open for %s", ErrUnreachable, g.ID)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	r := res.(readResult)
	return r.values, r.errs, nil
}

// Write sets one address on the remote. The caller must hold the request token.
func (g *Group) Write(ctx context.Context, address string, value any) error {
	return g.driver.Write(ctx, g.Descriptor, address, value)
}

// Revert restores one address to its default state. The caller must hold the
// request token.
func (g *Group) Revert(ctx context.Context, address string) error {
	return g.driver.Revert(ctx, g.Descriptor, address)
}
