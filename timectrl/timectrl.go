package timectrl

import (
	"sync"
	"time"
)

// Clock is the time source for record creation timestamps. Pipeline stages
// depend on this abstraction rather than on time.Now so that runs can be
// reproduced under test.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns a settable instant. It is safe for concurrent use, since
// detector rules may stamp events from several goroutines.
type FixedClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFixedClock constructs a clock frozen at start.
func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{current: start.UTC()}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetTime moves the clock to t.
func (c *FixedClock) SetTime(t time.Time) {
	c.mu.Lock()
	c.current = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// OrDefault returns c, or the system clock when c is nil.
func OrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
