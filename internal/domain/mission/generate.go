package mission

import (
	"fmt"
	"math"
	"time"
)

// RandomKeyPrefix marks generated mission keys.
const RandomKeyPrefix = "random-"

// optionsPerScenario is the number of options in a generated scenario.
const optionsPerScenario = 4

// returnBand is the [lo, hi] baseline range a risk level draws from.
type returnBand struct{ lo, hi float64 }

var riskBands = map[RiskLevel]returnBand{
	RiskNone:    {0, 0.08},
	RiskLow:     {-0.05, 0.25},
	RiskMedium:  {-0.30, 0.45},
	RiskHigh:    {-0.70, 0.90},
	RiskExtreme: {-0.95, 1.50},
}

type classTemplate struct {
	name string
	risk RiskLevel
}

var classTemplates = map[AssetClass]classTemplate{
	AssetEquities:       {"Broad Stock Index", RiskHigh},
	AssetFixedIncome:    {"Government Bonds", RiskLow},
	AssetCommodities:    {"Gold & Commodities", RiskMedium},
	AssetAlternatives:   {"Real Estate Fund", RiskHigh},
	AssetCash:           {"Cash Savings", RiskNone},
	AssetCryptocurrency: {"Crypto Basket", RiskExtreme},
}

// firstScenarioYear bounds the fictional year of generated scenarios.
const firstScenarioYear = 1971

// Generate builds a random scenario keyed "random-<id>". It draws four
// distinct asset classes and a baseline return from each option's risk
// band. Generated missions have no prerequisites and no quiz.
func Generate(rng RandomSource, id string, now time.Time) *Mission {
	classes := make([]AssetClass, len(AssetClasses))
	copy(classes, AssetClasses)
	for i := 0; i < optionsPerScenario; i++ {
		j := i + int(rng.Float64()*float64(len(classes)-i))
		classes[i], classes[j] = classes[j], classes[i]
	}

	options := make([]Option, 0, optionsPerScenario)
	for _, class := range classes[:optionsPerScenario] {
		tpl := classTemplates[class]
		band := riskBands[tpl.risk]
		baseline := band.lo + rng.Float64()*(band.hi-band.lo)
		options = append(options, Option{
			ID:             string(class),
			Name:           tpl.name,
			Risk:           tpl.risk,
			BaselineReturn: math.Round(baseline*100) / 100,
			AssetClass:     class,
		})
	}

	span := max(now.Year()-firstScenarioYear, 1)
	year := firstScenarioYear + int(rng.Float64()*float64(span))

	return &Mission{
		Key:       RandomKeyPrefix + id,
		Kind:      KindRandom,
		Title:     fmt.Sprintf("Market Mystery %d", year),
		Year:      year,
		Situation: "You've got $100,000 and four very different places to put it. Pick one and see how it plays out.",
		Options:   options,
	}
}
