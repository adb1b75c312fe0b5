package command

import (
	"context"
	"errors"
	"strings"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNUP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// Signup defaults for a brand-new profile.
const (
	DefaultSignupStreak        = 1
	DefaultSignupXP      int64 = 25
	DefaultSignupSource        = "homepage_streak"
)

// SignupCommand attaches an email to the player's progress.
type SignupCommand struct {
	Email     string
	SessionID string

	// Streak and TotalXP are the client-cached values. Nil means "not sent".
	Streak  *int
	TotalXP *int64
	Source  string
}

// Validate requires an email.
func (c SignupCommand) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return shared.WrapError("profile", "Signup", shared.ErrMissingIdentity, "email is required", nil)
	}
	return nil
}

// SignupResult is returned to the client.
type SignupResult struct {
	Email         string
	CurrentStreak int
	TotalXP       int64
	PlayerLevel   int64
	IsExisting    bool
}

// SignupHandler handles SignupCommand.
type SignupHandler struct {
	deps Deps
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(deps Deps) *SignupHandler {
	return &SignupHandler{deps: deps.withDefaults()}
}

// Handle merges into an existing email profile or creates one. An existing
// profile keeps the maximum of stored and sent streak and XP. A new profile
// is seeded from the sent values, falling back to the signup defaults. Either
// way the anonymous session profile, when one exists, is absorbed. The seed
// raises total XP only; it never counts toward the weekly league.
func (h *SignupHandler) Handle(ctx context.Context, cmd SignupCommand) (*SignupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	id, err := profile.NewIdentity(cmd.Email, "")
	if err != nil {
		return nil, err
	}
	id.SessionID = strings.TrimSpace(cmd.SessionID)

	now := h.deps.Clock.Now()
	log := h.deps.Logger.With(logger.Operation("signup"), logger.Identity(id.Fingerprint()))

	var anonymous *profile.Profile
	if id.SessionID != "" {
		anonymous, err = h.deps.Profiles.Get(ctx, profile.Identity{SessionID: id.SessionID})
		if err != nil && !errors.Is(err, shared.ErrProfileNotFound) {
			return nil, err
		}
	}

	source := cmd.Source
	if source == "" {
		source = DefaultSignupSource
	}

	var (
		existing bool
		earned   credits
	)
	p, err := h.deps.update(ctx, id, func(p *profile.Profile, exists bool) error {
		existing = exists
		if p.SessionID == "" {
			p.SessionID = id.SessionID
		}

		if exists {
			incoming := &profile.Profile{}
			if cmd.Streak != nil {
				incoming.Streak.Current = max(*cmd.Streak, 0)
			}
			if cmd.TotalXP != nil {
				incoming.XP.Total = max(*cmd.TotalXP, 0)
			}
			profile.Merge(p, incoming)
			if anonymous != nil {
				absorb(p, anonymous)
			}
			return nil
		}

		p.Source = source
		seedStreak := DefaultSignupStreak
		if cmd.Streak != nil && *cmd.Streak > 0 {
			seedStreak = *cmd.Streak
		}
		seedXP := DefaultSignupXP
		if cmd.TotalXP != nil && *cmd.TotalXP > 0 {
			seedXP = *cmd.TotalXP
		}
		p.Streak.Current = seedStreak
		p.Streak.Longest = seedStreak

		c, err := creditAwards(p, []mission.Award{{Source: progress.SourceSignupBonus, Amount: seedXP}}, now)
		if err != nil {
			return err
		}
		earned = c

		if anonymous != nil {
			absorb(p, anonymous)
		}
		return nil
	})
	if err != nil {
		log.Warn("signup failed", logger.Err(err))
		return nil, err
	}

	earned.record(h.deps.Recorder)
	events := append(earned.Events, shared.NewProfileSignedUpEvent(
		p.Key, p.Email, id.Fingerprint(), p.Streak.Current, p.XP.Total, p.Level(), existing, p.Source, now,
	))
	h.deps.publish(events)

	log.Info("signup", logger.Bool("existing", existing), logger.Streak(p.Streak.Current))
	return &SignupResult{
		Email:         p.Email,
		CurrentStreak: p.Streak.Current,
		TotalXP:       p.XP.Total,
		PlayerLevel:   p.Level(),
		IsExisting:    existing,
	}, nil
}

// absorb folds an anonymous session profile into an email profile:
// counters by maximum, last activity by latest and sets by union.
func absorb(p, anon *profile.Profile) {
	profile.Merge(p, anon)
	if last := anon.Streak.LastActiveAt; last != nil {
		if p.Streak.LastActiveAt == nil || last.After(*p.Streak.LastActiveAt) {
			t := *last
			p.Streak.LastActiveAt = &t
		}
	}
	for _, key := range anon.CompletedMissions {
		p.MarkCompleted(key)
	}
	p.RandomMissionsCompleted = max(p.RandomMissionsCompleted, anon.RandomMissionsCompleted)
	p.Stats.Merge(anon.Stats)
	for _, b := range anon.Badges {
		if !p.HasBadge(b) {
			p.Badges = append(p.Badges, b)
		}
	}
	if anon.LeagueTier > p.LeagueTier {
		p.LeagueTier = anon.LeagueTier
	}
}
