package league

// Movement is a tier change applied at season end.
type Movement struct {
	Identity string `json:"identity"`
	From     Tier   `json:"from"`
	To       Tier   `json:"to"`
	Position int    `json:"position"`
}

// Promoted reports whether the movement goes up a tier.
func (m Movement) Promoted() bool { return m.To > m.From }

// Reward is a placement reward to be credited to a member's ledger.
type Reward struct {
	Identity string `json:"identity"`
	Position int    `json:"position"`
	XP       int64  `json:"xp"`
}

// RolloverPlan is the pure result of closing a cohort. The caller applies
// it to profiles and storage.
type RolloverPlan struct {
	Season         string     `json:"season"`
	Tier           Tier       `json:"tier"`
	Movements      []Movement `json:"movements"`
	Rewards        []Reward   `json:"rewards"`
	FinalStandings []Standing `json:"final_standings"`
}

// Promoted returns the identities moving up.
func (p RolloverPlan) Promoted() []string {
	var out []string
	for _, m := range p.Movements {
		if m.Promoted() {
			out = append(out, m.Identity)
		}
	}
	return out
}

// Relegated returns the identities moving down.
func (p RolloverPlan) Relegated() []string {
	var out []string
	for _, m := range p.Movements {
		if !m.Promoted() {
			out = append(out, m.Identity)
		}
	}
	return out
}

// TierFor returns the tier identity plays in next season.
func (p RolloverPlan) TierFor(identity string) Tier {
	for _, m := range p.Movements {
		if m.Identity == identity {
			return m.To
		}
	}
	return p.Tier
}

// Rollover computes promotions, relegations and placement rewards for c.
// Movements are omitted at the tier bounds, where Next/Prev would be a no-op.
// Rewards go to the top three members that earned weekly XP.
func Rollover(c *Cohort, rewardsEnabled bool) RolloverPlan {
	standings := c.Ranked()
	plan := RolloverPlan{
		Season:         c.Season,
		Tier:           c.Tier,
		FinalStandings: standings,
	}

	for _, s := range standings {
		var to Tier
		switch s.Zone {
		case ZonePromotion:
			to = c.Tier.Next()
		case ZoneDanger:
			to = c.Tier.Prev()
		default:
			continue
		}
		if to == c.Tier {
			continue
		}
		plan.Movements = append(plan.Movements, Movement{
			Identity: s.Identity,
			From:     c.Tier,
			To:       to,
			Position: s.Position,
		})
	}

	if rewardsEnabled {
		for _, s := range standings {
			xp := c.Tier.PlacementReward(s.Position)
			if xp == 0 {
				break
			}
			if s.WeeklyXP <= 0 {
				continue
			}
			plan.Rewards = append(plan.Rewards, Reward{
				Identity: s.Identity,
				Position: s.Position,
				XP:       xp,
			})
		}
	}

	return plan
}
