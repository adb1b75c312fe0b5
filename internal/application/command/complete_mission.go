package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE MISSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMissionCommand finishes a run that reached the quiz.
type CompleteMissionCommand struct {
	Email     string
	SessionID string
	RunID     string
}

// CompleteMissionResult summarizes what the completion credited.
type CompleteMissionResult struct {
	MissionKey  string
	Kind        mission.Kind
	Awards      []mission.Award
	XPEarned    int64
	TotalXP     int64
	PlayerLevel int64
	LeveledUp   bool
	FirstTime   bool
	Outcome     *mission.Outcome
	Unlocked    []string
	NewBadges   []profile.BadgeID
}

// CompleteMissionHandler handles CompleteMissionCommand.
type CompleteMissionHandler struct {
	deps MissionDeps
}

// NewCompleteMissionHandler creates a new CompleteMissionHandler.
func NewCompleteMissionHandler(deps MissionDeps) *CompleteMissionHandler {
	return &CompleteMissionHandler{deps: deps.withDefaults()}
}

// Handle closes the quiz when still open, credits every award through the
// ledger, then records the mission, recomputes unlocks and evaluates badges.
// The run id is recorded on the profile in the same write, so a run whose
// delete failed is refused with ErrRunAlreadyCredited instead of paying twice.
func (h *CompleteMissionHandler) Handle(ctx context.Context, cmd CompleteMissionCommand) (*CompleteMissionResult, error) {
	id, err := profile.NewIdentity(cmd.Email, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	release, err := h.deps.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	run, m, err := h.deps.loadRun(ctx, id, cmd.RunID)
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	log := h.deps.Logger.With(
		logger.Operation("complete_mission"),
		logger.Identity(id.Fingerprint()),
		logger.RunID(run.ID),
		logger.MissionKey(m.Key),
	)

	if run.State == mission.StateQuiz {
		if err := run.FinishQuiz(m, now); err != nil {
			return nil, err
		}
	}
	if run.State != mission.StateCompleted {
		return nil, shared.WrapError("mission", "Complete", shared.ErrInvalidTransition,
			fmt.Sprintf("cannot complete a run in %s", run.State), nil)
	}

	var (
		result CompleteMissionResult
		earned credits
		events []shared.Event
	)
	p, err := h.deps.Profiles.Update(ctx, id, h.deps.inSeason(func(p *profile.Profile, _ bool) error {
		events = nil
		if p.HasCreditedRun(run.ID) {
			return shared.ErrRunAlreadyCredited
		}
		before := mission.Unlocked(h.deps.Catalog.Missions(), p.CompletedSet())

		firstTime := run.Kind == mission.KindScripted && !p.HasCompleted(run.MissionKey)
		awards := run.CompletionAwards(firstTime)
		if run.Outcome != nil {
			opt, err := m.Option(run.SelectedOptionID)
			if err != nil {
				return err
			}
			awards = append(awards, p.Stats.RecordInvestment(opt.Risk, opt.AssetClass, run.Outcome.IsLoss())...)
		}
		p.Stats.RecordCoach(run.CoachID)
		if run.ThesisBonus > 0 {
			p.Stats.ThesesWritten++
		}
		if run.PerfectQuiz(m) {
			p.Stats.QuizzesPassed++
		}

		c, err := creditAwards(p, awards, now)
		if err != nil {
			return err
		}
		earned = c
		events = append(events, c.Events...)

		if run.Kind == mission.KindRandom {
			p.RandomMissionsCompleted++
		} else {
			p.MarkCompleted(run.MissionKey)
		}
		p.RecordRun(run.ID)
		after := mission.Unlocked(h.deps.Catalog.Missions(), p.CompletedSet())

		result = CompleteMissionResult{
			MissionKey: run.MissionKey,
			Kind:       run.Kind,
			Awards:     c.applied,
			XPEarned:   c.Earned,
			LeveledUp:  c.LeveledUp,
			FirstTime:  firstTime,
			Outcome:    run.Outcome,
			Unlocked:   mission.NewlyUnlocked(h.deps.Catalog.Missions(), before, after),
		}
		if h.deps.Flags.IsEnabled(FlagBadges, p.Key) {
			badges, badgeEvents := evaluateBadges(p, now)
			result.NewBadges = badges
			events = append(events, badgeEvents...)
		}
		return nil
	}))
	if errors.Is(err, shared.ErrRunAlreadyCredited) {
		h.deleteRun(ctx, run.ID, log)
		return nil, err
	}
	if err != nil {
		log.Warn("completion failed", logger.Err(err))
		return nil, err
	}
	result.TotalXP = p.XP.Total
	result.PlayerLevel = p.Level()

	h.deleteRun(ctx, run.ID, log)

	var (
		performance string
		adjusted    float64
	)
	if run.Outcome != nil {
		performance = string(run.Outcome.Performance)
		adjusted = run.Outcome.AdjustedReturn
	}
	events = append(events, shared.NewMissionCompletedEvent(
		p.Key, run.MissionKey, string(run.Kind), result.XPEarned, performance, adjusted, result.Unlocked, now,
	))

	h.deps.Recorder.MissionCompleted(string(run.Kind))
	earned.record(h.deps.Recorder)
	h.deps.publish(events)

	log.Info("mission completed",
		logger.XPAmount(result.XPEarned),
		logger.Int("unlocked", len(result.Unlocked)),
	)
	return &result, nil
}

// deleteRun drops a credited run. Failure is only logged: the profile
// already refuses to credit the run again.
func (h *CompleteMissionHandler) deleteRun(ctx context.Context, runID string, log *logger.Logger) {
	if err := h.deps.Runs.Delete(ctx, runID); err != nil {
		log.Warn("run delete failed", logger.Err(err))
	}
}
