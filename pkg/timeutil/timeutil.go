// Package timeutil provides an injectable clock and civil-timezone helpers.
// Booking calendars and month boundaries are evaluated in one configured
// location, never in the caller's local zone.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// AlmatyTZ is the default platform timezone (UTC+5, no DST).
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// Layouts used across the API.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock returns the current instant. Handlers take a Clock so that
// time-dependent rules can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a manually advanced clock.
type FixedClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t.UTC()}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// CIVIL CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// LoadLocation resolves a tz database name. An empty name yields AlmatyTZ.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == AlmatyTZ.String() {
		return AlmatyTZ, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns local midnight of t's civil day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// StartOfMonth returns the first instant of t's civil month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, loc)
}

// MonthBounds returns [start, end) of the civil month containing t, shifted
// by offset months.
func MonthBounds(t time.Time, loc *time.Location, offset int) (time.Time, time.Time) {
	start := StartOfMonth(t, loc).AddDate(0, offset, 0)
	return start, start.AddDate(0, 1, 0)
}

// InRange reports whether t is in [start, end).
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// DateKey formats t's civil date in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ClockKey formats t's wall clock in loc as HH:MM.
func ClockKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(ClockLayout)
}

// ParseDate parses YYYY-MM-DD as local midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, loc)
}

// ParseClock parses HH:MM into minutes since midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// At returns the instant at minutes past midnight of day's civil date in loc.
func At(day time.Time, minutes int, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, minutes, 0, 0, loc)
}

// ParseInstant accepts RFC 3339, or a civil "YYYY-MM-DDTHH:MM" interpreted in loc.
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q", value)
	}
	return t, nil
}
