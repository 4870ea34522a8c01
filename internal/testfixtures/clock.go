package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source shared between a service under test and
// the assertions made about it.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts the clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc is what services take as their now dependency.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// LeadUpTo places the clock lead before start. LeadUpTo(s, 24*time.Hour)
// lands exactly on the cancellation penalty boundary.
func (c *Clock) LeadUpTo(start time.Time, lead time.Duration) time.Time {
	at := start.Add(-lead)
	c.Set(at)
	return at
}
