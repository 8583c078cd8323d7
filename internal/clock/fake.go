package clock

import "time"

// FakeClock is a manually advanced Clock for tests. Due dates, overdue
// windows, and settlement timestamps all derive from it, so a test can
// age an invoice by moving the clock instead of sleeping.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
