// Package weather turns raw station signals into daily statistics and the
// per-cycle reading snapshot.
package weather

import "time"

// Clock provides the current time. The wind sampler polls it in a tight loop,
// so implementations must be cheap.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
