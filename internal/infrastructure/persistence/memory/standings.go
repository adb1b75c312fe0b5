package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
)

type cohortKey struct {
	season string
	tier   league.Tier
}

// StandingsRepository keeps cohorts in memory.
type StandingsRepository struct {
	mu        sync.Mutex
	scores    map[cohortKey]map[string]int64
	prevRanks map[string]map[string]int
	rolled    map[cohortKey]bool
	promo     int
	releg     int
	loc       *time.Location
}

// NewStandingsRepository creates an empty store. Slot counts and the season
// location are applied to every cohort it loads.
func NewStandingsRepository(promotionSlots, relegationSlots int, loc *time.Location) *StandingsRepository {
	return &StandingsRepository{
		scores:    make(map[cohortKey]map[string]int64),
		prevRanks: make(map[string]map[string]int),
		rolled:    make(map[cohortKey]bool),
		promo:     promotionSlots,
		releg:     relegationSlots,
		loc:       loc,
	}
}

func (s *StandingsRepository) AddWeeklyXP(ctx context.Context, season string, tier league.Tier, identity string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cohortKey{season, tier}
	members, ok := s.scores[k]
	if !ok {
		members = make(map[string]int64)
		s.scores[k] = members
	}
	members[identity] += amount
	return nil
}

func (s *StandingsRepository) Cohort(ctx context.Context, season string, tier league.Tier) (*league.Cohort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := league.ParseSeason(season, s.loc)
	if err != nil {
		return nil, err
	}
	c, err := league.NewCohort(season, tier, s.promo, s.releg, start.End)
	if err != nil {
		return nil, err
	}

	members := s.scores[cohortKey{season, tier}]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.Members = append(c.Members, league.Member{
			Identity:     id,
			WeeklyXP:     members[id],
			PreviousRank: s.prevRanks[season][id],
		})
	}
	return c, nil
}

func (s *StandingsRepository) SetPreviousRanks(ctx context.Context, season string, ranks map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst, ok := s.prevRanks[season]
	if !ok {
		dst = make(map[string]int, len(ranks))
		s.prevRanks[season] = dst
	}
	for id, r := range ranks {
		dst[id] = r
	}
	return nil
}

func (s *StandingsRepository) Seasons(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]bool)
	for k := range s.scores {
		set[k.season] = true
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *StandingsRepository) MarkRolledOver(ctx context.Context, season string, tier league.Tier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cohortKey{season, tier}
	if s.rolled[k] {
		return false, nil
	}
	s.rolled[k] = true
	return true, nil
}
