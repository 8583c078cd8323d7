// Package clock abstracts time so aging and settlement logic stays testable.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
