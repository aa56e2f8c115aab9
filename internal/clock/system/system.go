// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock reports the current time in UTC. It satisfies the Clock interfaces
// of the jobs, verify and standardize packages.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (*Clock) Now() time.Time {
	return time.Now().UTC()
}
