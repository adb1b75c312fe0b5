// Package mission implements the historical investment missions: static
// content, the per-run decision/outcome state machine, outcome resolution,
// courage rewards and the unlock graph.
package mission

import (
	"fmt"
	"strings"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VOCABULARY
// ══════════════════════════════════════════════════════════════════════════════

// RiskLevel of an investment option.
type RiskLevel string

const (
	RiskNone    RiskLevel = "none"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// RiskLevels lists every risk level from safest to riskiest.
var RiskLevels = []RiskLevel{RiskNone, RiskLow, RiskMedium, RiskHigh, RiskExtreme}

// ParseRiskLevel normalizes s ("High", " extreme ") to a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range RiskLevels {
		if r == known {
			return r, nil
		}
	}
	return "", shared.NewDomainError("mission", "ParseRiskLevel", shared.ErrInvalidInput,
		fmt.Sprintf("unknown risk level %q", s))
}

// AssetClass of an investment option.
type AssetClass string

const (
	AssetEquities       AssetClass = "equities"
	AssetFixedIncome    AssetClass = "fixed_income"
	AssetCommodities    AssetClass = "commodities"
	AssetAlternatives   AssetClass = "alternatives"
	AssetCash           AssetClass = "cash"
	AssetCryptocurrency AssetClass = "cryptocurrency"
)

// AssetClasses lists the full asset-class vocabulary.
var AssetClasses = []AssetClass{
	AssetEquities, AssetFixedIncome, AssetCommodities,
	AssetAlternatives, AssetCash, AssetCryptocurrency,
}

// ParseAssetClass normalizes s to an AssetClass.
func ParseAssetClass(s string) (AssetClass, error) {
	a := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AssetClasses {
		if a == known {
			return a, nil
		}
	}
	return "", shared.NewDomainError("mission", "ParseAssetClass", shared.ErrInvalidInput,
		fmt.Sprintf("unknown asset class %q", s))
}

// Kind distinguishes catalog missions from generated scenarios.
type Kind string

const (
	KindScripted Kind = "scripted"
	KindRandom   Kind = "random"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT
// ══════════════════════════════════════════════════════════════════════════════

// Option is one investment choice. BaselineReturn is a fraction (-0.6 = -60%).
type Option struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Risk           RiskLevel  `json:"risk"`
	BaselineReturn float64    `json:"baseline_return"`
	AssetClass     AssetClass `json:"asset_class"`
	Insight        string     `json:"insight,omitempty"`
}

// Question is a multiple-choice quiz question. Answer indexes Choices.
type Question struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
	Answer  int      `json:"answer"`
}

// Mission is static content. Key is the year for scripted missions.
type Mission struct {
	Key           string            `json:"key"`
	Kind          Kind              `json:"kind"`
	Title         string            `json:"title"`
	Year          int               `json:"year"`
	Context       string            `json:"context,omitempty"`
	Situation     string            `json:"situation,omitempty"`
	Options       []Option          `json:"options"`
	CoachAdvice   map[string]string `json:"coach_advice,omitempty"`
	Outcome       string            `json:"outcome,omitempty"`
	Prerequisites []string          `json:"prerequisites,omitempty"`
	Quiz          []Question        `json:"quiz,omitempty"`
}

// Option returns the option with the given id.
func (m *Mission) Option(id string) (Option, error) {
	for _, o := range m.Options {
		if o.ID == id {
			return o, nil
		}
	}
	return Option{}, shared.WrapError("mission", "Option", shared.ErrOptionNotFound,
		fmt.Sprintf("mission %s has no option %q", m.Key, id), nil)
}

// Validate checks structural consistency of the content.
func (m *Mission) Validate() error {
	if m.Key == "" {
		return shared.NewDomainError("mission", "Validate", shared.ErrEmptyValue, "mission key is empty")
	}
	if len(m.Options) == 0 {
		return shared.NewDomainError("mission", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("mission %s has no options", m.Key))
	}
	seen := make(map[string]bool, len(m.Options))
	for _, o := range m.Options {
		if o.ID == "" || seen[o.ID] {
			return shared.NewDomainError("mission", "Validate", shared.ErrInvalidInput,
				fmt.Sprintf("mission %s has an empty or duplicate option id %q", m.Key, o.ID))
		}
		seen[o.ID] = true
	}
	for i, q := range m.Quiz {
		if q.Answer < 0 || q.Answer >= len(q.Choices) {
			return shared.NewDomainError("mission", "Validate", shared.ErrValueOutOfRange,
				fmt.Sprintf("mission %s question %d answer is out of range", m.Key, i))
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is the read-only set of scripted missions and coaches.
type Catalog struct {
	missions []*Mission
	byKey    map[string]*Mission
	coaches  []Coach
	byCoach  map[string]Coach
}

// NewCatalog validates and indexes content. Order is preserved.
func NewCatalog(missions []*Mission, coaches []Coach) (*Catalog, error) {
	c := &Catalog{
		byKey:   make(map[string]*Mission, len(missions)),
		byCoach: make(map[string]Coach, len(coaches)),
	}
	for _, m := range missions {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byKey[m.Key]; dup {
			return nil, shared.NewDomainError("mission", "NewCatalog", shared.ErrAlreadyExists,
				fmt.Sprintf("duplicate mission key %q", m.Key))
		}
		if m.Kind == "" {
			m.Kind = KindScripted
		}
		c.byKey[m.Key] = m
		c.missions = append(c.missions, m)
	}
	for _, coach := range coaches {
		if _, dup := c.byCoach[coach.ID]; dup {
			return nil, shared.NewDomainError("mission", "NewCatalog", shared.ErrAlreadyExists,
				fmt.Sprintf("duplicate coach id %q", coach.ID))
		}
		c.byCoach[coach.ID] = coach
		c.coaches = append(c.coaches, coach)
	}
	return c, nil
}

// Missions returns missions in content order.
func (c *Catalog) Missions() []*Mission {
	return c.missions
}

// Mission looks up a scripted mission by key.
func (c *Catalog) Mission(key string) (*Mission, error) {
	m, ok := c.byKey[key]
	if !ok {
		return nil, shared.WrapError("mission", "Mission", shared.ErrMissionNotFound,
			fmt.Sprintf("unknown mission %q", key), nil)
	}
	return m, nil
}

// Coaches returns all coaches in content order.
func (c *Catalog) Coaches() []Coach {
	return c.coaches
}

// Coach resolves a coach by id. Unknown ids fall back to a neutral coach so
// that a stale client never blocks a run.
func (c *Catalog) Coach(id string) Coach {
	if coach, ok := c.byCoach[id]; ok {
		return coach
	}
	return Coach{ID: id, Personality: PersonalityUnknown}
}
