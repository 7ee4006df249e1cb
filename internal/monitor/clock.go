package monitor

import "time"

// Clock abstracts time so loop tests can advance simulated time instead of
// sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewRealClock returns the wall clock.
func NewRealClock() Clock { return realClock{} }
