package clock

import "time"

// FakeClock is a Clock pinned to a fixed instant. Tests move it across TTL
// boundaries with Advance instead of sleeping.
type FakeClock struct {
	current time.Time
}

// NewFakeClock returns a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
