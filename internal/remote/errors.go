package remote

import "errors"

// Domain errors for the remote package.
var (
	// ErrUnknownDriver is returned when a device names a driver type that
	// has not been registered.
	ErrUnknownDriver = errors.New("remote: unknown driver type")

	// ErrUnreachable is returned when a whole-remote request fails; no
	// address-level result exists. Transient: the group is retried on its
	// normal schedule.
	ErrUnreachable = errors.New("remote: unreachable")

	// ErrBusy is returned by a non-blocking acquire when the group already
	// has a request in flight.
	ErrBusy = errors.New("remote: request in flight")
)
