package transcription

import "time"

// Clock abstracts time for the poller so tests can drive it.
type Clock interface {
	Now() time.Time
	// After delivers once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now.
func (RealClock) Now() time.Time { return time.Now() }

// After returns time.After.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
