package dispatch

import "errors"

// Dispatcher errors.
var (
	ErrNotWritable   = errors.New("point is not writable")
	ErrOverridden    = errors.New("device is overridden")
	ErrNoDefault     = errors.New("point has no default value")
	ErrNeverObserved = errors.New("point has never been observed")
)
