package progress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

var now = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func TestLevel(t *testing.T) {
	cases := map[int64]int64{
		0:     1,
		999:   1,
		1000:  2,
		1999:  2,
		2000:  3,
		49999: 50,
		75000: 76,
	}
	for total, want := range cases {
		assert.Equal(t, want, Level(total), "total=%d", total)
	}
}

func TestCredit_IncrementsBothCounters(t *testing.T) {
	l := Ledger{Total: 990, Weekly: 40}

	res, err := l.Credit(10, SourceStreakClaim, now)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), res.NewTotal)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, int64(1), res.OldLevel)
	assert.Equal(t, int64(2), res.Level)
	assert.Equal(t, int64(50), l.Weekly)
	require.Len(t, l.Recent, 1)
	assert.Equal(t, SourceStreakClaim, l.Recent[0].Source)
}

func TestCredit_NoLevelUpInsideBand(t *testing.T) {
	l := Ledger{Total: 1000}
	res, err := l.Credit(999, SourceMissionComplete, now)
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, int64(2), res.Level)
}

func TestCredit_RejectsNegativeWithoutSideEffects(t *testing.T) {
	l := Ledger{Total: 500, Weekly: 20}

	_, err := l.Credit(-1, SourceSync, now)

	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.Equal(t, Ledger{Total: 500, Weekly: 20}, l)
}

func TestCredit_RejectsUnknownSource(t *testing.T) {
	l := Ledger{}
	_, err := l.Credit(5, Source("cheat"), now)
	assert.True(t, shared.IsValidation(err))
	assert.Zero(t, l.Total)
}

func TestCredit_ZeroIsAllowedAndNotLogged(t *testing.T) {
	l := Ledger{Total: 10}
	res, err := l.Credit(0, SourceSync, now)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.NewTotal)
	assert.Empty(t, l.Recent)
}

func TestCredit_RecentLogIsBounded(t *testing.T) {
	l := Ledger{}
	for i := 0; i < RecentLimit+7; i++ {
		_, err := l.Credit(int64(i+1), SourceQuizCorrect, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	require.Len(t, l.Recent, RecentLimit)
	assert.Equal(t, int64(8), l.Recent[0].Amount, "oldest entries are dropped first")
	assert.Equal(t, int64(RecentLimit+7), l.Recent[RecentLimit-1].Amount)
}

func TestAmountFromFloat(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.5, -10} {
		_, err := AmountFromFloat(bad)
		assert.ErrorIs(t, err, shared.ErrInvalidAmount, "%v", bad)
	}

	v, err := AmountFromFloat(12.9)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
}

func TestProgressHelpers(t *testing.T) {
	l := Ledger{Total: 2250}
	assert.InDelta(t, 0.25, l.LevelProgress(), 1e-9)
	assert.Equal(t, int64(750), l.XPToNextLevel())
	assert.Equal(t, int64(3), l.Level())

	zero := Ledger{}
	assert.Equal(t, int64(1000), zero.XPToNextLevel())
	assert.Zero(t, zero.LevelProgress())
}

func TestRaiseTotal(t *testing.T) {
	l := Ledger{Total: 300, Weekly: 120}
	l.RaiseTotal(200)
	assert.Equal(t, int64(300), l.Total)
	l.RaiseTotal(450)
	assert.Equal(t, int64(450), l.Total)
	assert.Equal(t, int64(120), l.Weekly)
}

func TestCredit_NonCompetitiveSourcesSkipWeekly(t *testing.T) {
	for _, src := range []Source{SourceSignupBonus, SourceSync, SourceLeagueReward} {
		l := Ledger{Total: 100, Weekly: 30}

		_, err := l.Credit(500, src, now)
		require.NoError(t, err)

		assert.Equal(t, int64(600), l.Total, "%s", src)
		assert.Equal(t, int64(30), l.Weekly, "%s", src)
		assert.False(t, src.CountsWeekly())
	}
	assert.True(t, SourceMissionComplete.CountsWeekly())
	assert.True(t, SourceStreakClaim.CountsWeekly())
}

func TestCredit_RejectsOverflow(t *testing.T) {
	l := Ledger{Total: math.MaxInt64 - 5, Weekly: 7}

	_, err := l.Credit(6, SourceQuizCorrect, now)

	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Equal(t, Ledger{Total: math.MaxInt64 - 5, Weekly: 7}, l)

	res, err := l.Credit(5, SourceQuizCorrect, now)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), res.NewTotal)
}

func TestSeasonKeying(t *testing.T) {
	l := Ledger{Total: 500, Weekly: 80, Season: "2025-W10"}

	l.EnterSeason("2025-W10")
	assert.Equal(t, int64(80), l.Weekly)
	assert.Equal(t, int64(80), l.WeeklyIn("2025-W10"))
	assert.Zero(t, l.WeeklyIn("2025-W11"))

	l.EnterSeason("2025-W11")
	assert.Zero(t, l.Weekly)
	assert.Equal(t, "2025-W11", l.Season)

	_, err := l.Credit(40, SourceMissionComplete, now)
	require.NoError(t, err)

	// A late close of the previous season leaves the new season alone.
	l.CloseSeason("2025-W10")
	assert.Equal(t, int64(40), l.Weekly)

	l.CloseSeason("2025-W11")
	assert.Zero(t, l.Weekly)
	assert.Equal(t, int64(540), l.Total)
}

func TestSeasonKeying_UnstampedLedger(t *testing.T) {
	l := Ledger{Weekly: 90}
	assert.Zero(t, l.WeeklyIn("2025-W11"))

	l.CloseSeason("2025-W10")
	assert.Zero(t, l.Weekly)

	l = Ledger{Weekly: 90}
	l.EnterSeason("2025-W11")
	assert.Zero(t, l.Weekly)
}
