// Package system is the wall-clock implementation of crawler.Clock.
// Artifact expiry stamps and zip timestamps come from here, so times are
// normalized to UTC before they leave the package.
package system

import "time"

// Clock reads the system time in UTC.
type Clock struct{}

// New returns a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
