package league

import (
	"fmt"
	"sort"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ZONES
// ══════════════════════════════════════════════════════════════════════════════

// Zone classifies a position inside a cohort.
type Zone string

const (
	ZonePromotion Zone = "promotion"
	ZoneSafe      Zone = "safe"
	ZoneDanger    Zone = "danger"
)

// ZoneFor classifies a 1-based position. Promotion is checked first, so a
// position that falls in both ranges (tiny cohorts) is reported as promotion.
func ZoneFor(position, size, promotionSlots, relegationSlots int) Zone {
	switch {
	case position <= promotionSlots:
		return ZonePromotion
	case position > size-relegationSlots:
		return ZoneDanger
	default:
		return ZoneSafe
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COHORT
// ══════════════════════════════════════════════════════════════════════════════

// Member is one player inside a cohort. Identity is the canonical identity key.
type Member struct {
	Identity     string `json:"identity"`
	WeeklyXP     int64  `json:"weekly_xp"`
	PreviousRank int    `json:"previous_rank,omitempty"`
}

// Standing is a member with its computed position and zone.
type Standing struct {
	Member
	Position int  `json:"position"`
	Zone     Zone `json:"zone"`
}

// Cohort is the set of players competing in one tier for one season.
type Cohort struct {
	Season          string    `json:"season"`
	Tier            Tier      `json:"tier"`
	Members         []Member  `json:"members"`
	PromotionSlots  int       `json:"promotion_slots"`
	RelegationSlots int       `json:"relegation_slots"`
	SeasonEnd       time.Time `json:"season_end"`
}

// NewCohort creates an empty cohort.
func NewCohort(season string, tier Tier, promotionSlots, relegationSlots int, seasonEnd time.Time) (*Cohort, error) {
	if !tier.IsValid() {
		return nil, shared.ErrInvalidTier
	}
	if promotionSlots < 0 || relegationSlots < 0 {
		return nil, shared.ErrInvalidSlots
	}
	return &Cohort{
		Season:          season,
		Tier:            tier,
		PromotionSlots:  promotionSlots,
		RelegationSlots: relegationSlots,
		SeasonEnd:       seasonEnd,
	}, nil
}

// Size returns the number of members.
func (c *Cohort) Size() int {
	return len(c.Members)
}

// EffectiveSlots clamps the configured slots so that promotion and
// relegation together never exceed the cohort size. Promotion keeps
// priority when both do not fit.
func (c *Cohort) EffectiveSlots() (promotion, relegation int) {
	size := c.Size()
	promotion = min(c.PromotionSlots, size)
	relegation = min(c.RelegationSlots, size-promotion)
	return promotion, relegation
}

func (c *Cohort) indexOf(identity string) int {
	for i := range c.Members {
		if c.Members[i].Identity == identity {
			return i
		}
	}
	return -1
}

// Join adds identity with zero weekly XP. Joining twice is a no-op.
func (c *Cohort) Join(identity string) {
	if c.indexOf(identity) >= 0 {
		return
	}
	c.Members = append(c.Members, Member{Identity: identity})
}

// AddWeeklyXP mirrors a ledger credit into the member's weekly tally,
// joining the member if needed. It never resets the counter.
func (c *Cohort) AddWeeklyXP(identity string, amount int64) error {
	if err := progress.ValidateAmount(amount); err != nil {
		return err
	}
	i := c.indexOf(identity)
	if i < 0 {
		c.Members = append(c.Members, Member{Identity: identity})
		i = len(c.Members) - 1
	}
	c.Members[i].WeeklyXP += amount
	return nil
}

// less orders by weekly XP descending, then identity ascending.
func less(a, b Member) bool {
	if a.WeeklyXP != b.WeeklyXP {
		return a.WeeklyXP > b.WeeklyXP
	}
	return a.Identity < b.Identity
}

// Ranked returns a strict 1..N ordering with zones, without mutating c.
func (c *Cohort) Ranked() []Standing {
	sorted := make([]Member, len(c.Members))
	copy(sorted, c.Members)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	promo, releg := c.EffectiveSlots()
	out := make([]Standing, len(sorted))
	for i, m := range sorted {
		pos := i + 1
		out[i] = Standing{
			Member:   m,
			Position: pos,
			Zone:     ZoneFor(pos, len(sorted), promo, releg),
		}
	}
	return out
}

// Rank returns the 1-based position of identity.
func (c *Cohort) Rank(identity string) (int, error) {
	for _, s := range c.Ranked() {
		if s.Identity == identity {
			return s.Position, nil
		}
	}
	return 0, shared.WrapError("league", "Rank", shared.ErrMemberNotFound,
		fmt.Sprintf("%s is not in %s/%s", identity, c.Season, c.Tier), nil)
}

// Standing returns the full standing of identity.
func (c *Cohort) Standing(identity string) (Standing, error) {
	for _, s := range c.Ranked() {
		if s.Identity == identity {
			return s, nil
		}
	}
	return Standing{}, shared.WrapError("league", "Standing", shared.ErrMemberNotFound,
		fmt.Sprintf("%s is not in %s/%s", identity, c.Season, c.Tier), nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// TIME REMAINING
// ══════════════════════════════════════════════════════════════════════════════

// Remaining is a floored countdown.
type Remaining struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// TimeRemaining returns the countdown to seasonEnd, clamped to zero.
func TimeRemaining(seasonEnd, now time.Time) Remaining {
	d := seasonEnd.Sub(now)
	if d <= 0 {
		return Remaining{}
	}
	total := int(d / time.Minute)
	return Remaining{
		Days:    total / (24 * 60),
		Hours:   total / 60 % 24,
		Minutes: total % 60,
	}
}

// TimeRemaining is the cohort's countdown.
func (c *Cohort) TimeRemaining(now time.Time) Remaining {
	return TimeRemaining(c.SeasonEnd, now)
}
