package command

import (
	"context"
	"errors"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/domain/streak"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM STREAK COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ClaimStreakCommand claims today's daily reward.
type ClaimStreakCommand struct {
	Email     string
	SessionID string
}

// ClaimStreakResult is returned to the client.
type ClaimStreakResult struct {
	CurrentStreak  int
	XPEarned       int64
	TotalXP        int64
	BonusEarned    bool
	AlreadyClaimed bool
	LeveledUp      bool
	PlayerLevel    int64
	NewBadges      []profile.BadgeID
}

// ClaimStreakHandler handles ClaimStreakCommand.
type ClaimStreakHandler struct {
	deps Deps
}

// NewClaimStreakHandler creates a new ClaimStreakHandler.
func NewClaimStreakHandler(deps Deps) *ClaimStreakHandler {
	return &ClaimStreakHandler{deps: deps.withDefaults()}
}

// Handle claims the streak. The identity is validated before any storage
// access; a second claim on the same calendar date returns AlreadyClaimed
// without writing.
func (h *ClaimStreakHandler) Handle(ctx context.Context, cmd ClaimStreakCommand) (*ClaimStreakResult, error) {
	id, err := profile.NewIdentity(cmd.Email, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	log := h.deps.Logger.With(logger.Operation("claim_streak"), logger.Identity(id.Fingerprint()))

	var (
		result ClaimStreakResult
		events []shared.Event
		earned credits
	)
	_, err = h.deps.update(ctx, id, func(p *profile.Profile, _ bool) error {
		res, err := streak.Claim(&p.Streak, &p.XP, now, h.deps.Location)
		if err != nil {
			return err
		}
		result = ClaimStreakResult{
			CurrentStreak:  res.Streak,
			XPEarned:       res.XPEarned,
			TotalXP:        p.XP.Total,
			BonusEarned:    res.BonusEarned,
			AlreadyClaimed: res.AlreadyClaimed,
			LeveledUp:      res.Credit.LeveledUp,
			PlayerLevel:    p.Level(),
		}
		if res.AlreadyClaimed {
			return errUnchanged
		}

		// streak.Claim credited the ledger itself.
		earned = credits{
			Earned:    res.XPEarned,
			LeveledUp: res.Credit.LeveledUp,
			applied:   []mission.Award{{Source: progress.SourceStreakClaim, Amount: res.XPEarned}},
		}
		events = append(events, shared.NewXPCreditedEvent(
			p.Key, res.XPEarned, string(progress.SourceStreakClaim), res.Credit.NewTotal,
			res.Credit.Level, res.Credit.LeveledUp, p.LeagueTier.String(), now,
		))
		if res.Credit.LeveledUp {
			events = append(events, shared.NewLevelUpEvent(p.Key, res.Credit.OldLevel, res.Credit.Level, now))
		}
		events = append(events, shared.NewStreakClaimedEvent(p.Key, res.Streak, res.XPEarned, res.BonusEarned, now))

		if h.deps.Flags.IsEnabled(FlagBadges, p.Key) {
			badges, badgeEvents := evaluateBadges(p, now)
			result.NewBadges = badges
			events = append(events, badgeEvents...)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrConcurrentClaimConflict):
			h.deps.Recorder.StreakClaim("conflict")
		default:
			h.deps.Recorder.StreakClaim("error")
		}
		log.Warn("claim failed", logger.Err(err))
		return nil, err
	}

	if result.AlreadyClaimed {
		h.deps.Recorder.StreakClaim("already_claimed")
		return &result, nil
	}

	h.deps.Recorder.StreakClaim("claimed")
	earned.record(h.deps.Recorder)
	h.deps.publish(events)
	log.Info("streak claimed",
		logger.Streak(result.CurrentStreak),
		logger.XPAmount(result.XPEarned),
		logger.Bool("bonus", result.BonusEarned),
	)
	return &result, nil
}
