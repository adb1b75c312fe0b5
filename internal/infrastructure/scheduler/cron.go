package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression
// (minute hour day-of-month month day-of-week) evaluated in a fixed
// location. It implements Schedule.
//
// Examples:
//   - "*/5 * * * *"  every 5 minutes
//   - "0 21 * * *"   every day at 21:00
//   - "5 0 * * 1"    Mondays at 00:05
type CronExpression struct {
	raw      string
	loc      *time.Location
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

// Common cron expression presets.
const (
	EveryMinute      = "* * * * *"
	Every5Minutes    = "*/5 * * * *"
	EveryHour        = "0 * * * *"
	EveryDayMidnight = "0 0 * * *"
	// WeeklyRollover fires shortly after the Monday boundary so late
	// Sunday credits have landed.
	WeeklyRollover = "5 0 * * 1"
)

// ParseCronExpression parses expr in UTC.
func ParseCronExpression(expr string) (*CronExpression, error) {
	return ParseCronExpressionIn(expr, time.UTC)
}

// ParseCronExpressionIn parses expr, evaluating it in loc.
// Supports *, */n, n, n-m, n-m/s and comma lists of those.
func ParseCronExpressionIn(expr string, loc *time.Location) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}
	if loc == nil {
		loc = time.UTC
	}

	ce := &CronExpression{raw: expr, loc: loc}
	fieldDefs := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}
	for i, fd := range fieldDefs {
		values, err := parseField(fields[i], fd.min, fd.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", fd.name, err)
		}
		*fd.dst = values
	}
	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseField(field string, min, max int) ([]int, error) {
	set := make(map[int]struct{})
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(strings.TrimSpace(part), min, max, set); err != nil {
			return nil, err
		}
	}
	result := make([]int, 0, len(set))
	for v := range set {
		result = append(result, v)
	}
	sort.Ints(result)
	return result, nil
}

func parsePart(part string, min, max int, set map[int]struct{}) error {
	step := 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step value: %s", s)
		}
		step = n
		part = base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = atoiInRange(lo, min, max); err != nil {
			return err
		}
		if end, err = atoiInRange(hi, min, max); err != nil {
			return err
		}
		if start > end {
			return fmt.Errorf("invalid range: %s", part)
		}
	default:
		v, err := atoiInRange(part, min, max)
		if err != nil {
			return err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	for i := start; i <= end; i += step {
		set[i] = struct{}{}
	}
	return nil
}

func atoiInRange(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time, or
// the zero time when nothing matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.In(ce.loc).Add(time.Minute).Truncate(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(sorted []int, val int) bool {
	i := sort.SearchInts(sorted, val)
	return i < len(sorted) && sorted[i] == val
}
