package query

import (
	"context"
	"errors"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/domain/streak"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakQuery identifies the player. Both fields may be empty.
type GetStreakQuery struct {
	Email     string
	SessionID string
}

// StreakDTO is the daily-streak view.
type StreakDTO struct {
	CurrentStreak int        `json:"currentStreak"`
	TodayClaimed  bool       `json:"todayClaimed"`
	TotalXP       int64      `json:"totalXP"`
	LastClaimDate *time.Time `json:"lastClaimDate"`
	PlayerLevel   int64      `json:"playerLevel"`
}

// EmptyStreak is returned for unknown players.
func EmptyStreak() StreakDTO {
	return StreakDTO{PlayerLevel: progress.Level(0)}
}

// GetStreakHandler handles GetStreakQuery.
type GetStreakHandler struct {
	deps Deps
}

// NewGetStreakHandler creates a new GetStreakHandler.
func NewGetStreakHandler(deps Deps) *GetStreakHandler {
	return &GetStreakHandler{deps: deps.withDefaults()}
}

// Handle never fails: a missing identity, an unknown profile and an
// unreachable store all answer with EmptyStreak.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) StreakDTO {
	id, err := profile.NewIdentity(q.Email, q.SessionID)
	if err != nil {
		return EmptyStreak()
	}

	p, err := h.deps.findProfile(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrStorageUnavailable) {
			h.deps.Logger.Warn("streak read degraded", logger.Identity(id.Fingerprint()), logger.Err(err))
		} else {
			h.deps.Logger.Error("streak read failed", logger.Identity(id.Fingerprint()), logger.Err(err))
		}
		return EmptyStreak()
	}
	if p == nil {
		return EmptyStreak()
	}

	status := streak.StatusAt(p.Streak, h.deps.Clock.Now(), h.deps.Location)
	return StreakDTO{
		CurrentStreak: status.CurrentStreak,
		TodayClaimed:  status.TodayClaimed,
		TotalXP:       p.XP.Total,
		LastClaimDate: p.Streak.LastActiveAt,
		PlayerLevel:   p.Level(),
	}
}
