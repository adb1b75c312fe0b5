// Package content loads the mission catalog from TOML. The default catalog
// is embedded in the binary; operators may point CONTENT_PATH at an override.
package content

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
)

//go:embed missions.toml
var defaultCatalog []byte

type fileCoach struct {
	ID              string   `toml:"id"`
	Name            string   `toml:"name"`
	Personality     string   `toml:"personality"`
	Description     string   `toml:"description"`
	PreferredAssets []string `toml:"preferred_assets"`
}

type fileOption struct {
	ID          string  `toml:"id"`
	Name        string  `toml:"name"`
	Description string  `toml:"description"`
	Risk        string  `toml:"risk"`
	ReturnPct   float64 `toml:"return_pct"`
	AssetClass  string  `toml:"asset_class"`
	Insight     string  `toml:"insight"`
}

type fileQuestion struct {
	Prompt  string   `toml:"prompt"`
	Choices []string `toml:"choices"`
	Answer  int      `toml:"answer"`
}

type fileMission struct {
	Key           string            `toml:"key"`
	Title         string            `toml:"title"`
	Year          int               `toml:"year"`
	Context       string            `toml:"context"`
	Situation     string            `toml:"situation"`
	Outcome       string            `toml:"outcome"`
	Prerequisites []string          `toml:"prerequisites"`
	CoachAdvice   map[string]string `toml:"coach_advice"`
	Options       []fileOption      `toml:"options"`
	Quiz          []fileQuestion    `toml:"quiz"`
}

type file struct {
	Coaches  []fileCoach   `toml:"coaches"`
	Missions []fileMission `toml:"missions"`
}

// Default returns the embedded catalog.
func Default() (*mission.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*mission.Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML catalog content. Unknown keys are rejected so typos in
// content files fail loudly at startup.
func Parse(data []byte) (*mission.Catalog, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("content: decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("content: unknown keys: %s", strings.Join(keys, ", "))
	}

	coaches := make([]mission.Coach, 0, len(f.Coaches))
	for _, c := range f.Coaches {
		coach := mission.Coach{
			ID:          c.ID,
			Name:        c.Name,
			Personality: mission.ParsePersonality(c.Personality),
			Description: c.Description,
		}
		for _, a := range c.PreferredAssets {
			class, err := mission.ParseAssetClass(a)
			if err != nil {
				return nil, fmt.Errorf("content: coach %s: %w", c.ID, err)
			}
			coach.PreferredAssets = append(coach.PreferredAssets, class)
		}
		coaches = append(coaches, coach)
	}

	missions := make([]*mission.Mission, 0, len(f.Missions))
	for _, fm := range f.Missions {
		m := &mission.Mission{
			Key:           fm.Key,
			Kind:          mission.KindScripted,
			Title:         fm.Title,
			Year:          fm.Year,
			Context:       fm.Context,
			Situation:     fm.Situation,
			Outcome:       fm.Outcome,
			Prerequisites: fm.Prerequisites,
			CoachAdvice:   fm.CoachAdvice,
		}
		for _, o := range fm.Options {
			risk, err := mission.ParseRiskLevel(o.Risk)
			if err != nil {
				return nil, fmt.Errorf("content: mission %s option %s: %w", fm.Key, o.ID, err)
			}
			class, err := mission.ParseAssetClass(o.AssetClass)
			if err != nil {
				return nil, fmt.Errorf("content: mission %s option %s: %w", fm.Key, o.ID, err)
			}
			m.Options = append(m.Options, mission.Option{
				ID:             o.ID,
				Name:           o.Name,
				Description:    o.Description,
				Risk:           risk,
				BaselineReturn: o.ReturnPct / 100,
				AssetClass:     class,
				Insight:        o.Insight,
			})
		}
		for _, q := range fm.Quiz {
			m.Quiz = append(m.Quiz, mission.Question{Prompt: q.Prompt, Choices: q.Choices, Answer: q.Answer})
		}
		missions = append(missions, m)
	}

	return mission.NewCatalog(missions, coaches)
}
