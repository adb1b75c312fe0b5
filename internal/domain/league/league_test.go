package league

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

func cohortOf(t *testing.T, tier Tier, promo, releg int, xp map[string]int64) *Cohort {
	t.Helper()
	c, err := NewCohort("2025-W10", tier, promo, releg, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	for id, v := range xp {
		require.NoError(t, c.AddWeeklyXP(id, v))
	}
	return c
}

func TestTier_Ordering(t *testing.T) {
	assert.Equal(t, Silver, Bronze.Next())
	assert.Equal(t, Diamond, Diamond.Next())
	assert.Equal(t, Bronze, Bronze.Prev())
	assert.Equal(t, Platinum, Diamond.Prev())

	tier, err := ParseTier("GOLD")
	require.NoError(t, err)
	assert.Equal(t, Gold, tier)

	_, err = ParseTier("mithril")
	assert.ErrorIs(t, err, shared.ErrInvalidTier)
	assert.True(t, shared.IsValidation(err))
}

func TestRanked_OrderAndTieBreak(t *testing.T) {
	c := cohortOf(t, Bronze, 1, 1, map[string]int64{
		"session:c": 50,
		"session:a": 50,
		"session:b": 80,
		"session:d": 10,
	})

	ranked := c.Ranked()
	require.Len(t, ranked, 4)
	ids := []string{ranked[0].Identity, ranked[1].Identity, ranked[2].Identity, ranked[3].Identity}
	assert.Equal(t, []string{"session:b", "session:a", "session:c", "session:d"}, ids)
	for i, s := range ranked {
		assert.Equal(t, i+1, s.Position)
	}

	pos, err := c.Rank("session:c")
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	_, err = c.Rank("session:zzz")
	assert.ErrorIs(t, err, shared.ErrMemberNotFound)
}

func TestRanked_DoesNotMutateMembers(t *testing.T) {
	c := cohortOf(t, Bronze, 0, 0, nil)
	require.NoError(t, c.AddWeeklyXP("a", 1))
	require.NoError(t, c.AddWeeklyXP("b", 2))

	_ = c.Ranked()
	assert.Equal(t, "a", c.Members[0].Identity)
}

func TestZoneFor(t *testing.T) {
	assert.Equal(t, ZonePromotion, ZoneFor(3, 20, 3, 5))
	assert.Equal(t, ZoneSafe, ZoneFor(4, 20, 3, 5))
	assert.Equal(t, ZoneSafe, ZoneFor(10, 20, 3, 5))
	assert.Equal(t, ZoneSafe, ZoneFor(15, 20, 3, 5))
	assert.Equal(t, ZoneDanger, ZoneFor(16, 20, 3, 5))
	assert.Equal(t, ZoneDanger, ZoneFor(20, 20, 3, 5))
}

func TestAddWeeklyXP(t *testing.T) {
	c := cohortOf(t, Silver, 3, 5, nil)

	require.NoError(t, c.AddWeeklyXP("email:a@b.c", 40))
	require.NoError(t, c.AddWeeklyXP("email:a@b.c", 10))
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, int64(50), c.Members[0].WeeklyXP)

	err := c.AddWeeklyXP("email:a@b.c", -5)
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.Equal(t, int64(50), c.Members[0].WeeklyXP)
}

func TestEffectiveSlots_ClampedToSize(t *testing.T) {
	c := cohortOf(t, Gold, 3, 5, map[string]int64{"a": 3, "b": 2, "c": 1, "d": 0})

	promo, releg := c.EffectiveSlots()
	assert.Equal(t, 3, promo)
	assert.Equal(t, 1, releg)

	zones := map[string]Zone{}
	for _, s := range c.Ranked() {
		zones[s.Identity] = s.Zone
	}
	assert.Equal(t, ZonePromotion, zones["a"])
	assert.Equal(t, ZonePromotion, zones["c"])
	assert.Equal(t, ZoneDanger, zones["d"])
}

func TestRollover_MovementsAndRewards(t *testing.T) {
	xp := map[string]int64{}
	for i := 1; i <= 20; i++ {
		xp[fmt.Sprintf("p%02d", i)] = int64(1000 - i*10)
	}
	c := cohortOf(t, Gold, 3, 5, xp)

	plan := Rollover(c, true)

	assert.Equal(t, []string{"p01", "p02", "p03"}, plan.Promoted())
	assert.Equal(t, []string{"p16", "p17", "p18", "p19", "p20"}, plan.Relegated())
	assert.Equal(t, Platinum, plan.TierFor("p01"))
	assert.Equal(t, Silver, plan.TierFor("p20"))
	assert.Equal(t, Gold, plan.TierFor("p10"))

	require.Len(t, plan.Rewards, 3)
	assert.Equal(t, Reward{Identity: "p01", Position: 1, XP: 400}, plan.Rewards[0])
	assert.Equal(t, Reward{Identity: "p02", Position: 2, XP: 300}, plan.Rewards[1])
	assert.Equal(t, Reward{Identity: "p03", Position: 3, XP: 200}, plan.Rewards[2])
	assert.Len(t, plan.FinalStandings, 20)
}

func TestRollover_TierBounds(t *testing.T) {
	top := cohortOf(t, Diamond, 1, 1, map[string]int64{"a": 10, "b": 5, "c": 1})
	plan := Rollover(top, false)
	assert.Empty(t, plan.Promoted())
	assert.Equal(t, []string{"c"}, plan.Relegated())
	assert.Empty(t, plan.Rewards)

	bottom := cohortOf(t, Bronze, 1, 1, map[string]int64{"a": 10, "b": 5, "c": 1})
	plan = Rollover(bottom, true)
	assert.Equal(t, []string{"a"}, plan.Promoted())
	assert.Empty(t, plan.Relegated())
	require.Len(t, plan.Rewards, 3)
	assert.Equal(t, int64(100), plan.Rewards[0].XP)
}

func TestRollover_NoRewardWithoutActivity(t *testing.T) {
	c := cohortOf(t, Silver, 0, 0, map[string]int64{"a": 30, "b": 0, "c": 0})
	plan := Rollover(c, true)
	require.Len(t, plan.Rewards, 1)
	assert.Equal(t, "a", plan.Rewards[0].Identity)
	assert.Equal(t, int64(200), plan.Rewards[0].XP)
}

func TestTimeRemaining(t *testing.T) {
	end := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	r := TimeRemaining(end, end.Add(-(2*24*time.Hour + 3*time.Hour + 15*time.Minute + 59*time.Second)))
	assert.Equal(t, Remaining{Days: 2, Hours: 3, Minutes: 15}, r)

	assert.Equal(t, Remaining{}, TimeRemaining(end, end.Add(time.Hour)))
	assert.Equal(t, Remaining{}, TimeRemaining(end, end))
}

func TestSeasonFor(t *testing.T) {
	// Wednesday 12 February 2025.
	s := SeasonFor(time.Date(2025, 2, 12, 15, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "2025-W07", s.ID)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), s.Start)
	assert.Equal(t, time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC), s.End)

	assert.Equal(t, "2025-W08", s.Next().ID)
	assert.Equal(t, "2025-W06", s.Previous().ID)
	assert.True(t, s.Ended(s.End))
	assert.False(t, s.Ended(s.End.Add(-time.Second)))

	parsed, err := ParseSeason("2025-W07", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, s, parsed)

	_, err = ParseSeason("2025-07", time.UTC)
	assert.ErrorIs(t, err, shared.ErrInvalidSeason)
}
