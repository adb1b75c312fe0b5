package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/progress"
)

func day(n int) time.Time {
	return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func TestClaim_FirstClaim(t *testing.T) {
	var s State
	var l progress.Ledger

	res, err := Claim(&s, &l, day(1), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(10), res.XPEarned)
	assert.False(t, res.BonusEarned)
	assert.False(t, res.AlreadyClaimed)
	assert.Equal(t, int64(10), l.Total)
	assert.Equal(t, int64(10), l.Weekly)
	require.NotNil(t, s.LastActiveAt)
}

func TestClaim_SameDayIsIdempotent(t *testing.T) {
	var s State
	var l progress.Ledger

	_, err := Claim(&s, &l, day(1), time.UTC)
	require.NoError(t, err)

	res, err := Claim(&s, &l, day(1).Add(5*time.Hour), time.UTC)
	require.NoError(t, err)

	assert.True(t, res.AlreadyClaimed)
	assert.Zero(t, res.XPEarned)
	assert.False(t, res.BonusEarned)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(10), l.Total)
}

func TestClaim_ConsecutiveAndGap(t *testing.T) {
	var s State
	var l progress.Ledger

	for d := 1; d <= 6; d++ {
		res, err := Claim(&s, &l, day(d), time.UTC)
		require.NoError(t, err)
		assert.Equal(t, d, res.Streak)
		assert.Equal(t, int64(10), res.XPEarned)
	}

	res, err := Claim(&s, &l, day(7), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(60), res.XPEarned)
	assert.True(t, res.BonusEarned)

	// Day 8 skipped, day 9 skipped, claim on day 10.
	res, err = Claim(&s, &l, day(10), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(10), res.XPEarned)
	assert.False(t, res.BonusEarned)
	assert.Equal(t, 7, s.Longest)

	assert.Equal(t, int64(6*10+60+10), l.Total)
}

func TestClaim_SingleSkippedDayResets(t *testing.T) {
	s := State{Current: 4}
	last := day(1)
	s.LastActiveAt = &last
	var l progress.Ledger

	res, err := Claim(&s, &l, day(3), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
}

// The day-7 and day-30 milestones short-circuit the generic weekly bonus.
// This ordering is intentional product behaviour and must not drift.
func TestBonus_MilestonePrecedence(t *testing.T) {
	assert.Equal(t, int64(0), Bonus(1))
	assert.Equal(t, int64(0), Bonus(6))
	assert.Equal(t, int64(50), Bonus(7))
	assert.Equal(t, int64(25), Bonus(14))
	assert.Equal(t, int64(25), Bonus(21))
	assert.Equal(t, int64(25), Bonus(28))
	assert.Equal(t, int64(200), Bonus(30))
	assert.Equal(t, int64(25), Bonus(35))
	assert.Equal(t, int64(0), Bonus(0))
}

func TestClaim_Day30(t *testing.T) {
	last := day(29)
	s := State{Current: 29, Longest: 29, LastActiveAt: &last}
	var l progress.Ledger

	res, err := Claim(&s, &l, day(30), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Streak)
	assert.Equal(t, int64(210), res.XPEarned)
	assert.Equal(t, 30, s.Longest)
}

func TestStatusAt(t *testing.T) {
	last := day(5)
	s := State{Current: 3, LastActiveAt: &last}

	assert.Equal(t, Status{CurrentStreak: 3, TodayClaimed: true}, StatusAt(s, day(5), time.UTC))
	assert.Equal(t, Status{CurrentStreak: 3, TodayClaimed: false}, StatusAt(s, day(6), time.UTC))
	assert.Equal(t, Status{}, StatusAt(State{}, day(1), time.UTC))
}

func TestClaim_DateBoundaryFollowsLocation(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	// 23:30 and 00:30 local time on consecutive Los Angeles dates.
	first := time.Date(2025, 3, 1, 23, 30, 0, 0, la)
	second := time.Date(2025, 3, 2, 0, 30, 0, 0, la)

	var s State
	var l progress.Ledger
	_, err = Claim(&s, &l, first, la)
	require.NoError(t, err)

	res, err := Claim(&s, &l, second, la)
	require.NoError(t, err)
	assert.False(t, res.AlreadyClaimed)
	assert.Equal(t, 2, res.Streak)
}
