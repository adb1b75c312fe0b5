package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestCronExpression_WeeklyRollover(t *testing.T) {
	ce, err := ParseCronExpression(WeeklyRollover)
	require.NoError(t, err)

	// Wednesday
	from := time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 5, 0, 0, time.UTC), ce.Next(from))

	// Exactly on a match, the next one is a week later.
	onTime := time.Date(2025, 3, 17, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 24, 0, 5, 0, 0, time.UTC), ce.Next(onTime))
}

func TestCronExpression_Location(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ce, err := ParseCronExpressionIn(EveryDayMidnight, loc)
	require.NoError(t, err)

	next := ce.Next(time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, loc).Unix(), next.Unix())
}

func TestCronExpression_Parse(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 9-17/2 * * 1-5", false},
		{"0,30 * * * *", false},
		{"* * * *", true},
		{"60 * * * *", true},
		{"*/0 * * * *", true},
		{"5-1 * * * *", true},
		{"a * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(15 * time.Minute)
	at := time.Date(2025, 3, 12, 9, 31, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 12, 9, 45, 0, 0, time.UTC), s.Next(at))
	assert.Equal(t, "@every 15m0s", s.String())
	assert.Panics(t, func() { NewIntervalSchedule(0) })
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	panicking := &countingJob{name: "panicking", panic: true}
	for _, j := range []*countingJob{ok, failing, panicking} {
		require.NoError(t, s.Register(j, NewIntervalSchedule(time.Hour)))
	}

	var completed []string
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r.JobName) })

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "nope")

	_, err = s.RunNow(context.Background(), "panicking")
	assert.ErrorContains(t, err, "panicked")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Equal(t, []string{"ok", "failing", "panicking"}, completed)
	history := s.History(2)
	require.Len(t, history, 2)
	assert.Equal(t, "failing", history[0].JobName)

	for _, info := range s.ListJobs() {
		if info.Name == "failing" {
			assert.Equal(t, int64(1), info.FailCount)
		}
	}
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 3, 12, 9, 0, 30, 0, time.UTC)}
	s := NewScheduler(SchedulerConfig{TickInterval: 5 * time.Millisecond, Now: clock.Now})
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, job.runs.Load())

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_DisabledJobsDoNotRun(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 3, 12, 9, 0, 30, 0, time.UTC)}
	s := NewScheduler(SchedulerConfig{TickInterval: 5 * time.Millisecond, Now: clock.Now})
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.SetEnabled("tick", false))
	assert.ErrorIs(t, s.SetEnabled("missing", false), ErrJobNotFound)

	require.NoError(t, s.Start(context.Background()))
	clock.Advance(2 * time.Minute)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
}
