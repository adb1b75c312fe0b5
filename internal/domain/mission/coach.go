package mission

import "strings"

// Personality drives how a coach scales the outcome of a decision.
type Personality string

const (
	PersonalityConservative Personality = "conservative"
	PersonalityBalanced     Personality = "balanced"
	PersonalityAggressive   Personality = "aggressive"
	PersonalityIncome       Personality = "income"
	PersonalityUnknown      Personality = ""
)

// ParsePersonality maps a content string to a Personality. Unrecognised
// values map to PersonalityUnknown, which resolves with a neutral factor.
func ParsePersonality(s string) Personality {
	switch p := Personality(strings.ToLower(strings.TrimSpace(s))); p {
	case PersonalityConservative, PersonalityBalanced, PersonalityAggressive, PersonalityIncome:
		return p
	default:
		return PersonalityUnknown
	}
}

// Factor is the outcome multiplier for the personality.
func (p Personality) Factor() float64 {
	switch p {
	case PersonalityConservative:
		return 0.8
	case PersonalityBalanced:
		return 1.0
	case PersonalityAggressive:
		return 1.3
	case PersonalityIncome:
		return 0.9
	default:
		return 1.0
	}
}

// Coach is an advisor the player picks for a run.
type Coach struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Personality     Personality  `json:"personality"`
	Description     string       `json:"description,omitempty"`
	PreferredAssets []AssetClass `json:"preferred_assets,omitempty"`
}

// Advice returns the coach's line for m, if any.
func (c Coach) Advice(m *Mission) string {
	if m == nil || m.CoachAdvice == nil {
		return ""
	}
	return m.CoachAdvice[c.ID]
}
