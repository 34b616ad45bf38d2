package types

import "time"

// Clock abstracts time for testability. The scheduler's eligibility window,
// dedup day boundaries, and policy lead-time math all read the current time
// through this interface so tests can pin it.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }
