package remote

import (
	"context"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
)

// Reading is one observation returned by a driver.
type Reading struct {
	Value     any
	Timestamp time.Time
}

// Driver is the device-interface collaborator: it performs the actual
// protocol I/O against a remote described by a connection descriptor.
//
// Read returns per-address values and per-address errors; the error return
// is reserved for whole-remote failures (unreachable, timed out) where no
// address-level answer exists. Implementations must honour ctx cancellation
// so a hung remote surfaces as a failure rather than a stalled caller.
type Driver interface {
	Read(ctx context.Context, desc config.DriverConfig, addresses []string) (map[string]Reading, map[string]error, error)
	Write(ctx context.Context, desc config.DriverConfig, address string, value any) error
	Revert(ctx context.Context, desc config.DriverConfig, address string) error
}
