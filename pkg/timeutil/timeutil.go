// Package timeutil provides a reference-timezone clock for Advising Hub.
// Date pickers and "today" calculations read time through a Clock so that
// tests can pin the current instant.
package timeutil

import (
	"sync"
	"time"
)

// DefaultZoneName is the reference timezone used when none is configured.
const DefaultZoneName = "America/New_York"

// Clock returns the current time in a fixed reference timezone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock and converts it to its zone.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a clock for the named zone. Unknown zones fall back to UTC.
func NewSystemClock(zone string) *SystemClock {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

// Now returns the current time in the reference zone.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the reference zone.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// FixedClock always reports the same instant until moved. Safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewFixedClock creates a clock pinned at now, reported in loc.
func NewFixedClock(now time.Time, loc *time.Location) *FixedClock {
	if loc == nil {
		loc = time.UTC
	}
	return &FixedClock{now: now, loc: loc}
}

// Now returns the pinned instant in the clock's zone.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.In(c.loc)
}

// Location returns the clock's zone.
func (c *FixedClock) Location() *time.Location {
	return c.loc
}

// Advance moves the pinned instant forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// zoned reports another clock's instants in its own zone.
type zoned struct {
	base Clock
	loc  *time.Location
}

// InZone returns a clock that ticks with base but reports times in loc.
func InZone(base Clock, loc *time.Location) Clock {
	if loc == nil || loc == base.Location() {
		return base
	}
	return zoned{base: base, loc: loc}
}

func (z zoned) Now() time.Time           { return z.base.Now().In(z.loc) }
func (z zoned) Location() *time.Location { return z.loc }

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// FormatDate formats t as YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
