package service

import "time"

// Clock is the injectable time source. Proration and expiry math use it
// exclusively so tests are deterministic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }

// FixedClock returns a clock frozen at the given instant, for tests
type FixedClock struct {
	T time.Time
}

// Now returns the frozen instant
func (c FixedClock) Now() time.Time { return c.T }
