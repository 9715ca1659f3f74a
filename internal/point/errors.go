package point

import "errors"

// Domain errors for the point package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, point.ErrUnknownPoint) {
//	    // handle unknown topic
//	}
var (
	// ErrUnknownPoint is returned when a topic does not name a registered point.
	ErrUnknownPoint = errors.New("point: unknown point")

	// ErrNoMatch is returned when resolution produced an empty point set.
	ErrNoMatch = errors.New("point: no points matched")

	// ErrInvalidRegex is returned when a supplied filter pattern does not compile.
	ErrInvalidRegex = errors.New("point: invalid regex")
)
