package mission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

// seqRand replays values in order, then repeats the last one.
type seqRand struct {
	vals []float64
	i    int
}

func (s *seqRand) Float64() float64 {
	v := s.vals[min(s.i, len(s.vals)-1)]
	s.i++
	return v
}

var now = time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)

func mission1990() *Mission {
	return &Mission{
		Key:   "1990",
		Kind:  KindScripted,
		Title: "Japan Bubble",
		Year:  1990,
		Options: []Option{
			{ID: "stocks", Name: "Japanese Stocks", Risk: RiskHigh, BaselineReturn: -0.60, AssetClass: AssetEquities},
			{ID: "realestate", Name: "Tokyo Real Estate", Risk: RiskHigh, BaselineReturn: -0.70, AssetClass: AssetAlternatives},
			{ID: "bonds", Name: "US Treasury Bonds", Risk: RiskLow, BaselineReturn: 0.45, AssetClass: AssetFixedIncome},
			{ID: "gold", Name: "Gold", Risk: RiskMedium, BaselineReturn: 0.20, AssetClass: AssetCommodities},
		},
		Quiz: []Question{
			{Prompt: "q1", Choices: []string{"a", "b"}, Answer: 1},
			{Prompt: "q2", Choices: []string{"a", "b", "c"}, Answer: 0},
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FSM
// ══════════════════════════════════════════════════════════════════════════════

func TestTransition_Table(t *testing.T) {
	valid := []struct {
		from State
		ev   Event
		to   State
	}{
		{StateIntro, EventBegin, StateDecision},
		{StateDecision, EventBack, StateIntro},
		{StateDecision, EventConfirm, StateThesis},
		{StateThesis, EventSubmitThesis, StateResult},
		{StateThesis, EventSkipThesis, StateResult},
		{StateResult, EventContinue, StateWhatIf},
		{StateWhatIf, EventContinue, StateQuiz},
		{StateQuiz, EventFinishQuiz, StateCompleted},
	}
	for _, tc := range valid {
		got, err := Transition(tc.from, tc.ev)
		require.NoError(t, err, "%s --%s-->", tc.from, tc.ev)
		assert.Equal(t, tc.to, got)
	}

	invalid := []struct {
		from State
		ev   Event
	}{
		{StateIntro, EventConfirm},
		{StateThesis, EventBack},
		{StateResult, EventFinishQuiz},
		{StateCompleted, EventContinue},
		{StateQuiz, EventContinue},
	}
	for _, tc := range invalid {
		got, err := Transition(tc.from, tc.ev)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, tc.from, got)
	}

	assert.Equal(t, []Event{EventBack, EventConfirm}, Accepts(StateDecision))
	assert.Empty(t, Accepts(StateCompleted))
}

func TestRun_FullFlow(t *testing.T) {
	m := mission1990()
	r := NewRun("run-1", m, "email:a@b.c", "steady-sam", now)
	require.Equal(t, StateIntro, r.State)

	require.NoError(t, r.Begin(now))
	assert.ErrorIs(t, r.Confirm(now), shared.ErrNoOptionSelected)
	assert.ErrorIs(t, r.Select(m, "crypto", now), shared.ErrOptionNotFound)

	require.NoError(t, r.Select(m, "bonds", now))
	require.NoError(t, r.Confirm(now))
	assert.ErrorIs(t, r.Select(m, "gold", now), shared.ErrInvalidTransition)

	err := r.SubmitThesis(m, "too short", PersonalityConservative, fixedRand(0.5), now)
	assert.ErrorIs(t, err, shared.ErrThesisTooShort)
	assert.Equal(t, StateThesis, r.State)
	assert.Nil(t, r.Outcome)

	require.NoError(t, r.SubmitThesis(m, "Bonds are safe over the long term", PersonalityConservative, fixedRand(0.5), now))
	assert.Equal(t, StateResult, r.State)
	require.NotNil(t, r.Outcome)
	assert.InDelta(t, 0.36, r.Outcome.AdjustedReturn, 1e-9)
	assert.Equal(t, PerformanceProfit, r.Outcome.Performance)
	assert.Equal(t, int64(30), r.ThesisBonus)

	require.NoError(t, r.Continue(now))
	require.NoError(t, r.Continue(now))
	require.Equal(t, StateQuiz, r.State)

	correct, err := r.Answer(m, 0, 1, now)
	require.NoError(t, err)
	assert.True(t, correct)
	_, err = r.Answer(m, 0, 0, now)
	assert.ErrorIs(t, err, shared.ErrAlreadyAnswered)
	_, err = r.Answer(m, 5, 0, now)
	assert.ErrorIs(t, err, shared.ErrQuestionNotFound)
	correct, err = r.Answer(m, 1, 0, now)
	require.NoError(t, err)
	assert.True(t, correct)

	require.NoError(t, r.FinishQuiz(m, now))
	assert.Equal(t, StateCompleted, r.State)
	assert.True(t, r.PerfectQuiz(m))
	assert.Equal(t, int64(30+10+10+50), r.PendingXP())

	awards := r.CompletionAwards(true)
	assert.Equal(t, Award{progress.SourceMissionComplete, 100}, awards[0])
	assert.Equal(t, Award{progress.SourceMissionFirstTime, 50}, awards[1])
	assert.Equal(t, int64(100+50+100), SumAwards(awards))
}

func TestRun_SkipThesisGrantsNothing(t *testing.T) {
	m := mission1990()
	r := NewRun("run-2", m, "session:x", "", now)
	require.NoError(t, r.Begin(now))
	require.NoError(t, r.Select(m, "stocks", now))
	require.NoError(t, r.Confirm(now))
	require.NoError(t, r.SkipThesis(m, PersonalityUnknown, fixedRand(0), now))

	assert.Zero(t, r.PendingXP())
	assert.Equal(t, PerformanceLoss, r.Outcome.Performance)
	assert.InDelta(t, -0.54, r.Outcome.AdjustedReturn, 1e-9)
}

func TestRun_AnswerOutsideQuiz(t *testing.T) {
	m := mission1990()
	r := NewRun("run-3", m, "session:x", "", now)
	_, err := r.Answer(m, 0, 1, now)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestRun_CheckOwner(t *testing.T) {
	r := NewRun("run-4", mission1990(), "session:x", "", now)
	assert.NoError(t, r.CheckOwner("session:x"))
	assert.ErrorIs(t, r.CheckOwner("session:y"), shared.ErrRunNotOwned)
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

func TestPersonalityFactor(t *testing.T) {
	assert.Equal(t, 0.8, PersonalityConservative.Factor())
	assert.Equal(t, 1.0, PersonalityBalanced.Factor())
	assert.Equal(t, 1.3, PersonalityAggressive.Factor())
	assert.Equal(t, 0.9, PersonalityIncome.Factor())
	assert.Equal(t, 1.0, PersonalityUnknown.Factor())
	assert.Equal(t, PersonalityUnknown, ParsePersonality("chaotic"))
	assert.Equal(t, PersonalityIncome, ParsePersonality(" Income "))
}

func TestResolve_Bounds(t *testing.T) {
	dotcom := Option{ID: "dotcom", BaselineReturn: -0.95}
	out := Resolve(dotcom, PersonalityAggressive, fixedRand(0.999))
	assert.Equal(t, MinAdjustedReturn, out.AdjustedReturn)
	assert.InDelta(t, 20000, out.FinalAmount, 1e-6)

	moon := Option{ID: "moon", BaselineReturn: 1.8}
	out = Resolve(moon, PersonalityAggressive, fixedRand(0.5))
	assert.Equal(t, MaxAdjustedReturn, out.AdjustedReturn)
	assert.InDelta(t, 300000, out.FinalAmount, 1e-6)

	flat := Option{ID: "ai", BaselineReturn: 0}
	out = Resolve(flat, PersonalityBalanced, fixedRand(0.3))
	assert.Equal(t, PerformanceLoss, out.Performance, "zero return is not a profit")
}

func TestResolve_VarianceRange(t *testing.T) {
	opt := Option{ID: "x", BaselineReturn: 0.5}
	lo := Resolve(opt, PersonalityBalanced, fixedRand(0))
	hi := Resolve(opt, PersonalityBalanced, fixedRand(0.9999999))
	assert.InDelta(t, 0.45, lo.AdjustedReturn, 1e-9)
	assert.InDelta(t, 0.55, hi.AdjustedReturn, 1e-6)
}

func TestWhatIf_IsDeterministic(t *testing.T) {
	m := mission1990()
	proj := WhatIf(m, "gold")
	require.Len(t, proj, 4)
	assert.InDelta(t, 40000, proj[0].FinalAmount, 1e-6)
	assert.InDelta(t, 145000, proj[2].FinalAmount, 1e-6)
	assert.True(t, proj[3].Chosen)
	assert.False(t, proj[0].Chosen)
	assert.Equal(t, proj, WhatIf(m, "gold"))
}

func TestWhatIf_ReportsBaselineBeyondOutcomeBounds(t *testing.T) {
	m := &Mission{
		Key: "2008",
		Options: []Option{
			{ID: "lehman", Name: "Lehman Brothers", Risk: RiskExtreme, BaselineReturn: -0.95},
			{ID: "btc", Name: "Bitcoin", Risk: RiskExtreme, BaselineReturn: 3.5},
		},
	}

	proj := WhatIf(m, "lehman")

	require.Len(t, proj, 2)
	assert.InDelta(t, 5000, proj[0].FinalAmount, 1e-6)
	assert.Equal(t, PerformanceLoss, proj[0].Performance)
	assert.InDelta(t, 450000, proj[1].FinalAmount, 1e-6)
	assert.Equal(t, PerformanceProfit, proj[1].Performance)
}

// ══════════════════════════════════════════════════════════════════════════════
// THESIS
// ══════════════════════════════════════════════════════════════════════════════

func TestThesisBonus(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"buy bonds", 0},
		{"bonds go up", 10},
		{"bonds should go up a lot", 15},
		{"bonds are safe", 20},
		{"hold bonds now", 15},
		{"I think bonds are a safe bet for the long term", 30},
		{"Japanese valuations look stretched so I want to protect my capital and hold bonds for a few years", 45},
	}
	for _, tc := range cases {
		got, err := ThesisBonus(tc.text)
		if tc.want == 0 {
			assert.ErrorIs(t, err, shared.ErrThesisTooShort, tc.text)
			continue
		}
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COURAGE
// ══════════════════════════════════════════════════════════════════════════════

func TestStats_RecordInvestment(t *testing.T) {
	var s Stats

	awards := s.RecordInvestment(RiskExtreme, AssetEquities, true)
	assert.Equal(t, []Award{
		{progress.SourceFirstInvestment, 50},
		{progress.SourceNewAssetClass, 15},
		{progress.SourceNewRiskLevel, 15},
		{progress.SourceExtremeRisk, 25},
		{progress.SourceLossLesson, 30},
	}, awards)

	awards = s.RecordInvestment(RiskExtreme, AssetEquities, false)
	assert.Equal(t, []Award{
		{progress.SourceExtremeRisk, 25},
		{progress.SourceInvestAfterLoss, 40},
	}, awards)

	assert.Equal(t, 2, s.InvestmentsMade)
	assert.Equal(t, 2, s.ExtremeRiskInvestments)
	assert.Equal(t, 1, s.LossesExperienced)
	assert.Equal(t, 1, s.InvestmentsAfterLoss)
	assert.False(t, s.LastInvestmentWasLoss)
	assert.Equal(t, []AssetClass{AssetEquities}, s.AssetClasses)
}

func TestStats_Merge(t *testing.T) {
	a := Stats{InvestmentsMade: 3, AssetClasses: []AssetClass{AssetCash}, Coaches: []string{"steady-sam"}}
	b := Stats{InvestmentsMade: 1, LossesExperienced: 2, AssetClasses: []AssetClass{AssetEquities, AssetCash}}
	a.Merge(b)
	assert.Equal(t, 3, a.InvestmentsMade)
	assert.Equal(t, 2, a.LossesExperienced)
	assert.Equal(t, []AssetClass{AssetCash, AssetEquities}, a.AssetClasses)

	a.RecordCoach("growth-guru")
	a.RecordCoach("growth-guru")
	assert.Equal(t, []string{"growth-guru", "steady-sam"}, a.Coaches)
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATION & UNLOCK
// ══════════════════════════════════════════════════════════════════════════════

func TestGenerate(t *testing.T) {
	rng := &seqRand{vals: []float64{0.1, 0.7, 0.2, 0.5, 0.3, 0.6, 0.9, 0.4, 0.25}}
	m := Generate(rng, "abc", now)

	require.NoError(t, m.Validate())
	assert.Equal(t, "random-abc", m.Key)
	assert.Equal(t, KindRandom, m.Kind)
	assert.Empty(t, m.Prerequisites)
	require.Len(t, m.Options, 4)

	seen := map[AssetClass]bool{}
	for _, o := range m.Options {
		assert.False(t, seen[o.AssetClass], "asset classes are distinct")
		seen[o.AssetClass] = true
		band := riskBands[o.Risk]
		assert.GreaterOrEqual(t, o.BaselineReturn, band.lo-0.005)
		assert.LessOrEqual(t, o.BaselineReturn, band.hi+0.005)
	}
	assert.GreaterOrEqual(t, m.Year, firstScenarioYear)
	assert.Less(t, m.Year, now.Year())
}

func TestUnlocked(t *testing.T) {
	missions := []*Mission{
		{Key: "1990", Kind: KindScripted},
		{Key: "1997", Kind: KindScripted, Prerequisites: []string{"1990"}},
		{Key: "2000", Kind: KindScripted, Prerequisites: []string{"1997"}},
		{Key: "orphan", Kind: KindScripted, Prerequisites: []string{"missing"}},
		{Key: "a", Kind: KindScripted, Prerequisites: []string{"b"}},
		{Key: "b", Kind: KindScripted, Prerequisites: []string{"a"}},
	}

	before := Unlocked(missions, map[string]bool{})
	assert.Equal(t, map[string]bool{
		"1990": true, "1997": false, "2000": false, "orphan": false, "a": false, "b": false,
	}, before)

	after := Unlocked(missions, map[string]bool{"1990": true})
	assert.True(t, after["1997"])
	assert.False(t, after["2000"])
	assert.Equal(t, []string{"1997"}, NewlyUnlocked(missions, before, after))
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog([]*Mission{mission1990()}, []Coach{{ID: "steady-sam", Personality: PersonalityConservative}})
	require.NoError(t, err)

	m, err := c.Mission("1990")
	require.NoError(t, err)
	assert.Equal(t, "Japan Bubble", m.Title)

	_, err = c.Mission("1066")
	assert.ErrorIs(t, err, shared.ErrMissionNotFound)

	assert.Equal(t, PersonalityConservative, c.Coach("steady-sam").Personality)
	assert.Equal(t, 1.0, c.Coach("nobody").Personality.Factor())

	_, err = NewCatalog([]*Mission{mission1990(), mission1990()}, nil)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}
