package poll

import "time"

// Clock abstracts time for the scheduler so tests can drive due-time
// computation deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
