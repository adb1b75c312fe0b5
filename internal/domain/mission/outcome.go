package mission

import "math"

// Principal is the simulated amount every decision invests.
const Principal = 100000.0

// Adjusted returns are clamped to this range.
const (
	MinAdjustedReturn = -0.8
	MaxAdjustedReturn = 2.0
)

// RandomSource yields uniform values in [0, 1). *math/rand/v2.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// Performance summarizes an outcome.
type Performance string

const (
	PerformanceProfit Performance = "profit"
	PerformanceLoss   Performance = "loss"
)

// Outcome is the resolved result of a decision.
type Outcome struct {
	OptionID       string      `json:"option_id"`
	BaselineReturn float64     `json:"baseline_return"`
	CoachFactor    float64     `json:"coach_factor"`
	Variance       float64     `json:"variance"`
	AdjustedReturn float64     `json:"adjusted_return"`
	FinalAmount    float64     `json:"final_amount"`
	Performance    Performance `json:"performance"`
}

// IsLoss reports whether the decision lost money.
func (o Outcome) IsLoss() bool {
	return o.Performance == PerformanceLoss
}

func clampReturn(v float64) float64 {
	return math.Max(MinAdjustedReturn, math.Min(MaxAdjustedReturn, v))
}

func performanceOf(adjusted float64) Performance {
	if adjusted > 0 {
		return PerformanceProfit
	}
	return PerformanceLoss
}

// Resolve computes the outcome of choosing opt with a coach of personality p.
// The baseline is scaled by the coach factor and a uniform variance in
// [0.9, 1.1], then clamped.
func Resolve(opt Option, p Personality, rng RandomSource) Outcome {
	factor := p.Factor()
	variance := 0.9 + rng.Float64()*0.2
	adjusted := clampReturn(opt.BaselineReturn * factor * variance)
	return Outcome{
		OptionID:       opt.ID,
		BaselineReturn: opt.BaselineReturn,
		CoachFactor:    factor,
		Variance:       variance,
		AdjustedReturn: adjusted,
		FinalAmount:    Principal * (1 + adjusted),
		Performance:    performanceOf(adjusted),
	}
}

// Projection is the deterministic what-if result for one option.
type Projection struct {
	OptionID       string      `json:"option_id"`
	Name           string      `json:"name"`
	Risk           RiskLevel   `json:"risk"`
	AssetClass     AssetClass  `json:"asset_class"`
	BaselineReturn float64     `json:"baseline_return"`
	FinalAmount    float64     `json:"final_amount"`
	Performance    Performance `json:"performance"`
	Chosen         bool        `json:"chosen"`
}

// WhatIf projects every option of m on its baseline return alone.
// chosenID marks the player's pick, if any.
func WhatIf(m *Mission, chosenID string) []Projection {
	out := make([]Projection, 0, len(m.Options))
	for _, o := range m.Options {
		out = append(out, Projection{
			OptionID:       o.ID,
			Name:           o.Name,
			Risk:           o.Risk,
			AssetClass:     o.AssetClass,
			BaselineReturn: o.BaselineReturn,
			FinalAmount:    Principal * (1 + o.BaselineReturn),
			Performance:    performanceOf(o.BaselineReturn),
			Chosen:         o.ID == chosenID,
		})
	}
	return out
}
