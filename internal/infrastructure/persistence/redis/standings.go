package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
)

// TTLStandings keeps finished seasons around long enough for rollover and
// the previous-rank lookups of the following week.
const TTLStandings = 35 * 24 * time.Hour

// StandingsStore keeps one sorted set per (season, tier) cohort.
type StandingsStore struct {
	client *Client
	promo  int
	releg  int
	loc    *time.Location
}

// NewStandingsStore creates a store applying the given slot counts and
// season location to every cohort it loads.
func NewStandingsStore(client *Client, promotionSlots, relegationSlots int, loc *time.Location) *StandingsStore {
	if loc == nil {
		loc = time.UTC
	}
	return &StandingsStore{client: client, promo: promotionSlots, releg: relegationSlots, loc: loc}
}

// AddWeeklyXP increments the member's score and registers the season.
func (s *StandingsStore) AddWeeklyXP(ctx context.Context, season string, tier league.Tier, identity string, amount int64) error {
	key := s.client.keys.CohortKey(season, tier.String())

	pipe := s.client.rdb.TxPipeline()
	pipe.ZIncrBy(ctx, key, float64(amount), identity)
	pipe.Expire(ctx, key, TTLStandings)
	pipe.SAdd(ctx, s.client.keys.SeasonsKey(), season)
	_, err := pipe.Exec(ctx)
	return mapError("AddWeeklyXP", err)
}

// Cohort loads every member of the cohort with their previous ranks.
func (s *StandingsStore) Cohort(ctx context.Context, season string, tier league.Tier) (*league.Cohort, error) {
	sn, err := league.ParseSeason(season, s.loc)
	if err != nil {
		return nil, err
	}
	c, err := league.NewCohort(season, tier, s.promo, s.releg, sn.End)
	if err != nil {
		return nil, err
	}

	scores, err := s.client.rdb.ZRangeWithScores(ctx, s.client.keys.CohortKey(season, tier.String()), 0, -1).Result()
	if err != nil {
		return nil, mapError("ZRange", err)
	}
	if len(scores) == 0 {
		return c, nil
	}

	ids := make([]string, 0, len(scores))
	for _, z := range scores {
		ids = append(ids, z.Member.(string))
	}
	prev, err := s.client.rdb.HMGet(ctx, s.client.keys.PreviousRanksKey(season), ids...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, mapError("HMGet", err)
	}

	for i, z := range scores {
		m := league.Member{Identity: ids[i], WeeklyXP: int64(z.Score)}
		if i < len(prev) {
			if raw, ok := prev[i].(string); ok {
				m.PreviousRank, _ = strconv.Atoi(raw)
			}
		}
		c.Members = append(c.Members, m)
	}
	sort.Slice(c.Members, func(i, j int) bool { return c.Members[i].Identity < c.Members[j].Identity })
	return c, nil
}

// SetPreviousRanks records final positions so the next season can show
// rank movement.
func (s *StandingsStore) SetPreviousRanks(ctx context.Context, season string, ranks map[string]int) error {
	if len(ranks) == 0 {
		return nil
	}
	key := s.client.keys.PreviousRanksKey(season)
	values := make(map[string]any, len(ranks))
	for id, r := range ranks {
		values[id] = r
	}

	pipe := s.client.rdb.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, TTLStandings)
	_, err := pipe.Exec(ctx)
	return mapError("SetPreviousRanks", err)
}

// Seasons lists known seasons in ascending order.
func (s *StandingsStore) Seasons(ctx context.Context) ([]string, error) {
	out, err := s.client.rdb.SMembers(ctx, s.client.keys.SeasonsKey()).Result()
	if err != nil {
		return nil, mapError("SMembers", err)
	}
	sort.Strings(out)
	return out, nil
}

// MarkRolledOver claims the cohort's rollover. Only the first caller wins.
func (s *StandingsStore) MarkRolledOver(ctx context.Context, season string, tier league.Tier) (bool, error) {
	ok, err := s.client.rdb.SetNX(ctx, s.client.keys.RolledKey(season, tier.String()), time.Now().UTC().Format(time.RFC3339), TTLStandings).Result()
	if err != nil {
		return false, mapError("MarkRolledOver", err)
	}
	return ok, nil
}
