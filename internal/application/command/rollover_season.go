package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLLOVER SEASON COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RolloverSeasonCommand closes league seasons. An empty Season closes every
// ended season with unprocessed cohorts.
type RolloverSeasonCommand struct {
	Season string
}

// RolloverSeasonResult lists the applied plans.
type RolloverSeasonResult struct {
	Plans   []league.RolloverPlan
	Skipped int
}

// RolloverSeasonHandler handles RolloverSeasonCommand.
type RolloverSeasonHandler struct {
	deps      Deps
	standings league.StandingsRepository
}

// NewRolloverSeasonHandler creates a new RolloverSeasonHandler.
func NewRolloverSeasonHandler(deps Deps, standings league.StandingsRepository) *RolloverSeasonHandler {
	return &RolloverSeasonHandler{deps: deps.withDefaults(), standings: standings}
}

// Handle rolls over each cohort at most once. Per cohort it credits
// placement rewards, moves every member to their next tier, resets their
// weekly XP and records final ranks as the next season's previous ranks.
// Profile failures do not stop the remaining members; they are joined into
// the returned error.
func (h *RolloverSeasonHandler) Handle(ctx context.Context, cmd RolloverSeasonCommand) (*RolloverSeasonResult, error) {
	now := h.deps.Clock.Now()

	seasons, err := h.seasons(ctx, cmd.Season)
	if err != nil {
		return nil, err
	}

	result := &RolloverSeasonResult{}
	var errs []error
	for _, season := range seasons {
		ranks := make(map[string]int)
		for _, tier := range league.Tiers {
			plan, skipped, err := h.rolloverCohort(ctx, season, tier, now)
			if err != nil {
				errs = append(errs, err)
			}
			if skipped {
				result.Skipped++
			}
			if plan == nil {
				continue
			}
			result.Plans = append(result.Plans, *plan)
			for _, s := range plan.FinalStandings {
				ranks[s.Identity] = s.Position
			}
		}
		if len(ranks) > 0 {
			if err := h.standings.SetPreviousRanks(ctx, season.Next().ID, ranks); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return result, errors.Join(errs...)
}

func (h *RolloverSeasonHandler) seasons(ctx context.Context, requested string) ([]league.Season, error) {
	now := h.deps.Clock.Now()
	if requested != "" {
		s, err := league.ParseSeason(requested, h.deps.Location)
		if err != nil {
			return nil, err
		}
		if !s.Ended(now) {
			return nil, shared.WrapError("league", "Rollover", shared.ErrInvalidState,
				fmt.Sprintf("season %s has not ended", s.ID), nil)
		}
		return []league.Season{s}, nil
	}

	ids, err := h.standings.Seasons(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	var out []league.Season
	for _, id := range ids {
		s, err := league.ParseSeason(id, h.deps.Location)
		if err != nil {
			h.deps.Logger.Warn("skipping malformed season", logger.Season(id), logger.Err(err))
			continue
		}
		if s.Ended(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

// rolloverCohort returns a nil plan for empty cohorts and for cohorts that
// were already claimed; skipped reports the latter.
func (h *RolloverSeasonHandler) rolloverCohort(ctx context.Context, season league.Season, tier league.Tier, now time.Time) (plan *league.RolloverPlan, skipped bool, err error) {
	log := h.deps.Logger.With(logger.Operation("rollover"), logger.Season(season.ID), logger.Tier(tier.String()))

	cohort, err := h.standings.Cohort(ctx, season.ID, tier)
	if err != nil {
		return nil, false, err
	}
	if cohort.Size() == 0 {
		return nil, false, nil
	}
	claimed, err := h.standings.MarkRolledOver(ctx, season.ID, tier)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		return nil, true, nil
	}

	rewardsEnabled := h.deps.Flags.IsEnabled(FlagLeagueRewards, "season:"+season.ID)
	p := league.Rollover(cohort, rewardsEnabled)
	plan = &p

	rewards := make(map[string]int64, len(plan.Rewards))
	for _, r := range plan.Rewards {
		rewards[r.Identity] = r.XP
	}

	var (
		errs   []error
		events []shared.Event
	)
	for _, s := range plan.FinalStandings {
		evs, err := h.applyToMember(ctx, s.Identity, season.ID, rewards[s.Identity], plan.TierFor(s.Identity), now)
		if err != nil {
			log.Warn("member rollover failed", logger.Identity(profile.FingerprintKey(s.Identity)), logger.Err(err))
			errs = append(errs, err)
			continue
		}
		events = append(events, evs...)
	}

	events = append(events, shared.NewSeasonRolledOverEvent(
		season.ID, tier.String(), plan.Promoted(), plan.Relegated(), len(plan.Rewards), now,
	))
	h.deps.Recorder.RolloverApplied(tier.String())
	h.deps.publish(events)

	log.Info("cohort rolled over",
		logger.Int("members", cohort.Size()),
		logger.Int("promoted", len(plan.Promoted())),
		logger.Int("relegated", len(plan.Relegated())),
		logger.Int("rewarded", len(plan.Rewards)),
	)
	return plan, false, errors.Join(errs...)
}

// applyToMember credits the reward, sets the tier and closes the member's
// weekly XP for the season, in one profile update. Weekly XP already earned
// in a later season survives a rollover that runs late.
func (h *RolloverSeasonHandler) applyToMember(ctx context.Context, key, season string, reward int64, tier league.Tier, now time.Time) ([]shared.Event, error) {
	id, err := profile.ParseKey(key)
	if err != nil {
		return nil, err
	}

	var earned credits
	_, err = h.deps.update(ctx, id, func(p *profile.Profile, _ bool) error {
		c, err := creditAwards(p, []mission.Award{{Source: progress.SourceLeagueReward, Amount: reward}}, now)
		if err != nil {
			return err
		}
		earned = c
		p.LeagueTier = tier
		p.XP.CloseSeason(season)
		return nil
	})
	if err != nil {
		return nil, err
	}
	earned.record(h.deps.Recorder)
	return earned.Events, nil
}
