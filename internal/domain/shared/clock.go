package shared

import (
	"sync"
	"time"
)

// Clock supplies the current instant. Every date-relative computation in the
// ledger reads time through a Clock so batch runs and tests can pin "today".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock returns a clock in the given location (UTC when nil)
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

// Now returns the current time
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock is a settable clock for tests and replays
type FixedClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFixedClock creates a clock pinned to t
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the pinned time
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Today returns the calendar date of t as midnight UTC. Ledger dates are
// stored as UTC midnights so comparisons never cross a zone boundary.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from a to b
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
