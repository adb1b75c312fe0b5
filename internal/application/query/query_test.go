package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/domain/streak"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/legacy-quest/progression-engine/pkg/timeutil"
)

var now = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

func newDeps(t *testing.T) Deps {
	t.Helper()
	catalog, err := mission.NewCatalog([]*mission.Mission{
		{Key: "1990", Title: "Opening Bell", Year: 1990, Options: []mission.Option{
			{ID: "stocks", Risk: mission.RiskHigh, BaselineReturn: 0.5, AssetClass: mission.AssetEquities},
			{ID: "cash", Risk: mission.RiskNone, BaselineReturn: -0.9, AssetClass: mission.AssetCash},
		}},
		{Key: "1997", Title: "Contagion", Year: 1997, Prerequisites: []string{"1990"}, Options: []mission.Option{
			{ID: "bonds", Risk: mission.RiskLow, BaselineReturn: 0.05, AssetClass: mission.AssetFixedIncome},
		}},
	}, nil)
	require.NoError(t, err)

	return Deps{
		Profiles:  memory.NewProfileRepository(),
		Standings: memory.NewStandingsRepository(1, 1, time.UTC),
		Catalog:   catalog,
		Runs:      memory.NewRunStore(time.Hour),
		Clock:     &timeutil.FixedClock{T: now},
	}
}

func seed(t *testing.T, d Deps, id profile.Identity, fn profile.UpdateFunc) {
	t.Helper()
	_, err := d.Profiles.Update(context.Background(), id, fn)
	require.NoError(t, err)
}

func TestGetStreak_UnknownPlayersGetEmptyView(t *testing.T) {
	h := NewGetStreakHandler(newDeps(t))

	for _, q := range []GetStreakQuery{{}, {SessionID: "nobody"}} {
		got := h.Handle(context.Background(), q)
		assert.Equal(t, EmptyStreak(), got)
		assert.Equal(t, int64(1), got.PlayerLevel)
		assert.Nil(t, got.LastClaimDate)
	}
}

func TestGetStreak_ReportsTodayClaimed(t *testing.T) {
	d := newDeps(t)
	id := profile.Identity{SessionID: "s1"}
	seed(t, d, id, func(p *profile.Profile, _ bool) error {
		_, err := streak.Claim(&p.Streak, &p.XP, now.Add(-time.Hour), time.UTC)
		return err
	})

	got := NewGetStreakHandler(d).Handle(context.Background(), GetStreakQuery{SessionID: "s1"})
	assert.Equal(t, 1, got.CurrentStreak)
	assert.True(t, got.TodayClaimed)
	assert.Equal(t, streak.BaseReward, got.TotalXP)
	require.NotNil(t, got.LastClaimDate)
}

func TestGetProfile(t *testing.T) {
	d := newDeps(t)
	id := profile.Identity{Email: "ada@example.com"}
	seed(t, d, id, func(p *profile.Profile, _ bool) error {
		p.MarkCompleted("1990")
		p.Badges = append(p.Badges, profile.BadgeMissionStarter)
		p.XP.EnterSeason(league.SeasonFor(now, time.UTC).ID)
		_, err := p.XP.Credit(250, progress.SourceMissionComplete, now)
		return err
	})

	got, err := NewGetProfileHandler(d).Handle(context.Background(), GetProfileQuery{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.TotalXP)
	assert.Equal(t, int64(250), got.WeeklyXP)
	assert.Equal(t, progress.Level(250), got.PlayerLevel)
	assert.Equal(t, []string{"1990"}, got.CompletedMissions)
	require.Len(t, got.Badges, 1)
	assert.Equal(t, "Mission Starter", got.Badges[0].Name)
	assert.Equal(t, "bronze", got.LeagueTier)

	_, err = NewGetProfileHandler(d).Handle(context.Background(), GetProfileQuery{SessionID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrProfileNotFound)
}

func TestGetProfile_WeeklyXPFromEarlierSeasonReadsZero(t *testing.T) {
	d := newDeps(t)
	seed(t, d, profile.Identity{SessionID: "s1"}, func(p *profile.Profile, _ bool) error {
		p.XP.EnterSeason(league.SeasonFor(now, time.UTC).Previous().ID)
		_, err := p.XP.Credit(70, progress.SourceQuizCorrect, now.AddDate(0, 0, -7))
		return err
	})

	got, err := NewGetProfileHandler(d).Handle(context.Background(), GetProfileQuery{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, int64(70), got.TotalXP)
	assert.Zero(t, got.WeeklyXP)
}

func TestGetLeagueStanding(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	season := league.SeasonFor(now, time.UTC)

	for key, xp := range map[string]int64{"email:ada@example.com": 40, "session:b": 90, "session:c": 10} {
		require.NoError(t, d.Standings.AddWeeklyXP(ctx, season.ID, league.Bronze, key, xp))
	}

	got, err := NewGetLeagueStandingHandler(d).Handle(ctx, GetLeagueStandingQuery{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, season.ID, got.Season)
	assert.Equal(t, "bronze", got.Tier)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, league.ZoneSafe, got.Zone)
	assert.Equal(t, int64(40), got.WeeklyXP)
	require.Len(t, got.Standings, 3)
	assert.True(t, got.Standings[1].IsMe)
	assert.NotContains(t, got.Standings[1].Player, "ada")
	assert.Equal(t, league.TimeRemaining(season.End, now), got.TimeRemaining)
}

func TestListMissions_UnlockFlags(t *testing.T) {
	d := newDeps(t)
	h := NewListMissionsHandler(d)

	anon, err := h.Handle(context.Background(), ListMissionsQuery{})
	require.NoError(t, err)
	require.Len(t, anon.Missions, 2)
	assert.True(t, anon.Missions[0].Unlocked)
	assert.False(t, anon.Missions[1].Unlocked)

	seed(t, d, profile.Identity{SessionID: "s1"}, func(p *profile.Profile, _ bool) error {
		p.MarkCompleted("1990")
		return nil
	})
	got, err := h.Handle(context.Background(), ListMissionsQuery{SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, got.Missions[0].Completed)
	assert.True(t, got.Missions[1].Unlocked)
}

func TestGetRun_WhatIfRequiresOutcome(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	m, err := d.Catalog.Mission("1990")
	require.NoError(t, err)

	run := mission.NewRun("run-1", m, "session:s1", "", now)
	require.NoError(t, d.Runs.Save(ctx, run))

	h := NewGetRunHandler(d)
	got, err := h.Handle(ctx, GetRunQuery{SessionID: "s1", RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, []mission.Event{mission.EventBegin}, got.Accepts)

	_, err = h.WhatIf(ctx, GetRunQuery{SessionID: "s1", RunID: "run-1"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = h.Handle(ctx, GetRunQuery{SessionID: "other", RunID: "run-1"})
	assert.ErrorIs(t, err, shared.ErrRunNotOwned)

	run.SelectedOptionID = "stocks"
	run.Outcome = &mission.Outcome{OptionID: "stocks", AdjustedReturn: 0.5, Performance: mission.PerformanceProfit}
	require.NoError(t, d.Runs.Save(ctx, run))

	whatIf, err := h.WhatIf(ctx, GetRunQuery{SessionID: "s1", RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, whatIf.Projections, 2)
	assert.True(t, whatIf.Projections[0].Chosen)
	assert.InDelta(t, mission.Principal*(1+mission.MinAdjustedReturn), whatIf.Projections[1].FinalAmount, 0.001)
}
