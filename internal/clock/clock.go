// Package clock abstracts wall-clock reads so time-dependent behavior
// (checkpoint timestamps, rate-limit windows, verification freshness) can be
// pinned in tests via Fake.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

var _ Clock = RealClock{}
