// Package timeutil holds calendar helpers used by streaks and league seasons.
// Every day boundary is evaluated in one configured location; there is no
// per-player timezone normalisation.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock abstracts the wall clock so services can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T. Tests move it by assigning T.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// LoadLocation resolves an IANA name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown location %q: %w", name, err)
	}
	return loc, nil
}

func in(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// StartOfDay returns local midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := in(t, loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// SameDate reports whether a and b fall on the same calendar date in loc.
func SameDate(a, b time.Time, loc *time.Location) bool {
	la, lb := in(a, loc), in(b, loc)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

// DaysBetween returns the number of calendar days from a to b in loc
// (positive when b is later). DST transitions do not skew the result.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	la, lb := in(a, loc), in(b, loc)
	da := time.Date(la.Year(), la.Month(), la.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(lb.Year(), lb.Month(), lb.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// IsPreviousDay reports whether prev is exactly the calendar day before today.
func IsPreviousDay(prev, today time.Time, loc *time.Location) bool {
	return DaysBetween(prev, today, loc) == 1
}

// StartOfWeek returns Monday 00:00 of t's week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekID formats t's ISO week as "2025-W07".
func WeekID(t time.Time, loc *time.Location) string {
	year, week := in(t, loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseWeekID returns Monday 00:00 in loc of the ISO week named by id.
func ParseWeekID(id string, loc *time.Location) (time.Time, error) {
	yearPart, weekPart, ok := strings.Cut(id, "-W")
	if !ok {
		return time.Time{}, fmt.Errorf("timeutil: malformed week id %q", id)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: malformed week year %q: %w", id, err)
	}
	week, err := strconv.Atoi(weekPart)
	if err != nil || week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("timeutil: malformed week number %q", id)
	}
	if loc == nil {
		loc = time.UTC
	}

	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 12, 0, 0, 0, loc)
	monday := StartOfWeek(jan4, loc).AddDate(0, 0, (week-1)*7)
	if y, w := monday.ISOWeek(); y != year || w != week {
		return time.Time{}, fmt.Errorf("timeutil: week %q does not exist", id)
	}
	return monday, nil
}

// FormatDate renders the calendar date of t in loc as YYYY-MM-DD.
func FormatDate(t time.Time, loc *time.Location) string {
	return in(t, loc).Format(time.DateOnly)
}
