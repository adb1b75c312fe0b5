package query

import (
	"context"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery identifies the player.
type GetProfileQuery struct {
	Email     string
	SessionID string
}

// BadgeDTO is an earned badge with its display text.
type BadgeDTO struct {
	ID          profile.BadgeID       `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Category    profile.BadgeCategory `json:"category"`
}

// ProfileDTO is the player's own view of their profile.
type ProfileDTO struct {
	Email                   string                 `json:"email,omitempty"`
	TotalXP                 int64                  `json:"totalXP"`
	WeeklyXP                int64                  `json:"weeklyXP"`
	PlayerLevel             int64                  `json:"playerLevel"`
	LevelProgress           float64                `json:"levelProgress"`
	XPToNextLevel           int64                  `json:"xpToNextLevel"`
	CurrentStreak           int                    `json:"currentStreak"`
	LongestStreak           int                    `json:"longestStreak"`
	TodayClaimed            bool                   `json:"todayClaimed"`
	LastClaimDate           *time.Time             `json:"lastClaimDate"`
	CompletedMissions       []string               `json:"completedMissions"`
	RandomMissionsCompleted int                    `json:"randomMissionsCompleted"`
	Badges                  []BadgeDTO             `json:"badges"`
	LeagueTier              string                 `json:"leagueTier"`
	Stats                   mission.Stats          `json:"stats"`
	RecentXP                []progress.Transaction `json:"recentXP"`
	MemberSince             time.Time              `json:"memberSince"`
}

// GetProfileHandler handles GetProfileQuery.
type GetProfileHandler struct {
	deps Deps
}

// NewGetProfileHandler creates a new GetProfileHandler.
func NewGetProfileHandler(deps Deps) *GetProfileHandler {
	return &GetProfileHandler{deps: deps.withDefaults()}
}

// Handle returns ErrProfileNotFound for players without progress.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*ProfileDTO, error) {
	id, err := profile.NewIdentity(q.Email, q.SessionID)
	if err != nil {
		return nil, err
	}
	p, err := h.deps.findProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, shared.ErrProfileNotFound
	}

	now := h.deps.Clock.Now()
	status := streak.StatusAt(p.Streak, now, h.deps.Location)
	dto := &ProfileDTO{
		Email:                   p.Email,
		TotalXP:                 p.XP.Total,
		WeeklyXP:                p.XP.WeeklyIn(league.SeasonFor(now, h.deps.Location).ID),
		PlayerLevel:             p.Level(),
		LevelProgress:           p.XP.LevelProgress(),
		XPToNextLevel:           p.XP.XPToNextLevel(),
		CurrentStreak:           status.CurrentStreak,
		LongestStreak:           p.Streak.Longest,
		TodayClaimed:            status.TodayClaimed,
		LastClaimDate:           p.Streak.LastActiveAt,
		CompletedMissions:       append([]string{}, p.CompletedMissions...),
		RandomMissionsCompleted: p.RandomMissionsCompleted,
		Badges:                  badgesOf(p),
		LeagueTier:              p.LeagueTier.String(),
		Stats:                   p.Stats,
		RecentXP:                p.XP.Recent,
		MemberSince:             p.CreatedAt,
	}
	return dto, nil
}

// badgesOf lists earned badges in catalog display order.
func badgesOf(p *profile.Profile) []BadgeDTO {
	out := []BadgeDTO{}
	for _, b := range profile.Badges {
		if p.HasBadge(b.ID) {
			out = append(out, BadgeDTO{ID: b.ID, Name: b.Name, Description: b.Description, Category: b.Category})
		}
	}
	return out
}
