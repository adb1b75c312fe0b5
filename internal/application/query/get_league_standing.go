package query

import (
	"context"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEAGUE STANDING QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetLeagueStandingQuery identifies the player whose cohort is shown.
type GetLeagueStandingQuery struct {
	Email     string
	SessionID string
}

// StandingDTO is one row of the cohort table.
type StandingDTO struct {
	Position     int         `json:"position"`
	Player       string      `json:"player"`
	WeeklyXP     int64       `json:"weeklyXP"`
	PreviousRank int         `json:"previousRank,omitempty"`
	Zone         league.Zone `json:"zone"`
	IsMe         bool        `json:"isMe"`
}

// LeagueDTO is the player's cohort for the current season.
type LeagueDTO struct {
	Season          string           `json:"season"`
	Tier            string           `json:"tier"`
	Position        int              `json:"position"`
	Zone            league.Zone      `json:"zone,omitempty"`
	WeeklyXP        int64            `json:"weeklyXP"`
	Size            int              `json:"size"`
	PromotionSlots  int              `json:"promotionSlots"`
	RelegationSlots int              `json:"relegationSlots"`
	TimeRemaining   league.Remaining `json:"timeRemaining"`
	Standings       []StandingDTO    `json:"standings"`
}

// GetLeagueStandingHandler handles GetLeagueStandingQuery.
type GetLeagueStandingHandler struct {
	deps Deps
}

// NewGetLeagueStandingHandler creates a new GetLeagueStandingHandler.
func NewGetLeagueStandingHandler(deps Deps) *GetLeagueStandingHandler {
	return &GetLeagueStandingHandler{deps: deps.withDefaults()}
}

// Handle shows the cohort of the player's current tier. A player without
// weekly XP has position 0 and no zone.
func (h *GetLeagueStandingHandler) Handle(ctx context.Context, q GetLeagueStandingQuery) (*LeagueDTO, error) {
	id, err := profile.NewIdentity(q.Email, q.SessionID)
	if err != nil {
		return nil, err
	}
	p, err := h.deps.findProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	tier := league.Bronze
	if p != nil {
		tier = p.LeagueTier
	}

	now := h.deps.Clock.Now()
	season := league.SeasonFor(now, h.deps.Location)
	cohort, err := h.deps.Standings.Cohort(ctx, season.ID, tier)
	if err != nil {
		return nil, err
	}

	promo, releg := cohort.EffectiveSlots()
	dto := &LeagueDTO{
		Season:          season.ID,
		Tier:            tier.String(),
		Size:            cohort.Size(),
		PromotionSlots:  promo,
		RelegationSlots: releg,
		TimeRemaining:   league.TimeRemaining(season.End, now),
		Standings:       make([]StandingDTO, 0, cohort.Size()),
	}

	me := id.Key()
	for _, s := range cohort.Ranked() {
		row := StandingDTO{
			Position:     s.Position,
			Player:       displayID(s.Identity),
			WeeklyXP:     s.WeeklyXP,
			PreviousRank: s.PreviousRank,
			Zone:         s.Zone,
			IsMe:         s.Identity == me,
		}
		if row.IsMe {
			dto.Position = s.Position
			dto.Zone = s.Zone
			dto.WeeklyXP = s.WeeklyXP
		}
		dto.Standings = append(dto.Standings, row)
	}
	return dto, nil
}
