// Package league models weekly league cohorts: ranking by weekly XP,
// promotion/relegation zones, season rollover and placement rewards.
package league

import (
	"fmt"
	"strings"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// Tier is an ordered league tier. The zero value is Bronze.
type Tier int

const (
	Bronze Tier = iota
	Silver
	Gold
	Platinum
	Diamond
)

// Tiers lists every tier from lowest to highest.
var Tiers = []Tier{Bronze, Silver, Gold, Platinum, Diamond}

func (t Tier) String() string {
	switch t {
	case Bronze:
		return "bronze"
	case Silver:
		return "silver"
	case Gold:
		return "gold"
	case Platinum:
		return "platinum"
	case Diamond:
		return "diamond"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// IsValid reports whether t is a defined tier.
func (t Tier) IsValid() bool {
	return t >= Bronze && t <= Diamond
}

// Next returns the tier above t; Diamond stays Diamond.
func (t Tier) Next() Tier {
	if t >= Diamond {
		return Diamond
	}
	return t + 1
}

// Prev returns the tier below t; Bronze stays Bronze.
func (t Tier) Prev() Tier {
	if t <= Bronze {
		return Bronze
	}
	return t - 1
}

// ParseTier parses a tier name case-insensitively. Empty means Bronze.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bronze":
		return Bronze, nil
	case "silver":
		return Silver, nil
	case "gold":
		return Gold, nil
	case "platinum":
		return Platinum, nil
	case "diamond":
		return Diamond, nil
	default:
		return Bronze, shared.WrapError("league", "ParseTier", shared.ErrInvalidTier,
			fmt.Sprintf("unknown tier %q", s), nil)
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, shared.ErrInvalidTier
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// placementRewards holds 1st/2nd/3rd place XP per tier.
var placementRewards = map[Tier][3]int64{
	Bronze:   {100, 75, 50},
	Silver:   {200, 150, 100},
	Gold:     {400, 300, 200},
	Platinum: {750, 500, 350},
	Diamond:  {1500, 1000, 750},
}

// PlacementReward returns the season-end XP for a 1-based place, or zero
// outside the podium.
func (t Tier) PlacementReward(place int) int64 {
	rewards, ok := placementRewards[t]
	if !ok || place < 1 || place > len(rewards) {
		return 0
	}
	return rewards[place-1]
}
