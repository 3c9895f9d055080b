package telemetry

import "time"

// Clock supplies timestamps for events that arrive without one.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock (with its monotonic reading).
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
