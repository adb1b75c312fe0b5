package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires on wall-clock multiples of Interval, so a job
// every 15m runs at :00, :15, :30 and :45 regardless of when it was
// registered.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule panics on a non-positive interval.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval <= 0 {
		panic(fmt.Sprintf("scheduler: invalid interval %v", interval))
	}
	return &IntervalSchedule{Interval: interval}
}

func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Truncate(s.Interval).Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}
