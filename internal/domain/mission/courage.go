package mission

import (
	"slices"

	"github.com/legacy-quest/progression-engine/internal/domain/progress"
)

// Award is one pending XP grant, credited through the ledger on completion.
type Award struct {
	Source progress.Source `json:"source"`
	Amount int64           `json:"amount"`
}

// SumAwards totals a list of awards.
func SumAwards(awards []Award) int64 {
	var total int64
	for _, a := range awards {
		total += a.Amount
	}
	return total
}

// Stats is the investment history kept on a player profile. The slices are
// sorted sets so the JSON form is stable.
type Stats struct {
	InvestmentsMade        int          `json:"investments_made"`
	HighRiskInvestments    int          `json:"high_risk_investments"`
	ExtremeRiskInvestments int          `json:"extreme_risk_investments"`
	LossesExperienced      int          `json:"losses_experienced"`
	InvestmentsAfterLoss   int          `json:"investments_after_loss"`
	LastInvestmentWasLoss  bool         `json:"last_investment_was_loss"`
	AssetClasses           []AssetClass `json:"asset_classes,omitempty"`
	RiskLevels             []RiskLevel  `json:"risk_levels,omitempty"`
	Coaches                []string     `json:"coaches,omitempty"`
	QuizzesPassed          int          `json:"quizzes_passed"`
	ThesesWritten          int          `json:"theses_written"`
}

func addToSet[T ~string](set []T, v T) ([]T, bool) {
	i, found := slices.BinarySearch(set, v)
	if found {
		return set, false
	}
	return slices.Insert(set, i, v), true
}

// RecordInvestment folds a resolved decision into s and returns the
// courage awards it earns. An invest-after-loss award needs the previous
// decision to have lost and this one to have not.
func (s *Stats) RecordInvestment(risk RiskLevel, class AssetClass, wasLoss bool) []Award {
	var awards []Award

	if s.InvestmentsMade == 0 {
		awards = append(awards, Award{progress.SourceFirstInvestment, progress.RewardFirstInvestment})
	}

	var newClass, newRisk bool
	s.AssetClasses, newClass = addToSet(s.AssetClasses, class)
	s.RiskLevels, newRisk = addToSet(s.RiskLevels, risk)
	if newClass {
		awards = append(awards, Award{progress.SourceNewAssetClass, progress.RewardNewAssetClass})
	}
	if newRisk {
		awards = append(awards, Award{progress.SourceNewRiskLevel, progress.RewardNewRiskLevel})
	}

	switch risk {
	case RiskHigh:
		s.HighRiskInvestments++
		awards = append(awards, Award{progress.SourceHighRisk, progress.RewardHighRisk})
	case RiskExtreme:
		s.ExtremeRiskInvestments++
		awards = append(awards, Award{progress.SourceExtremeRisk, progress.RewardExtremeRisk})
	}

	if wasLoss {
		s.LossesExperienced++
		awards = append(awards, Award{progress.SourceLossLesson, progress.RewardLossLesson})
	}
	if s.LastInvestmentWasLoss && !wasLoss {
		s.InvestmentsAfterLoss++
		awards = append(awards, Award{progress.SourceInvestAfterLoss, progress.RewardInvestAfterLoss})
	}

	s.InvestmentsMade++
	s.LastInvestmentWasLoss = wasLoss
	return awards
}

// RecordCoach notes that a coach was used.
func (s *Stats) RecordCoach(id string) {
	if id == "" {
		return
	}
	s.Coaches, _ = addToSet(s.Coaches, id)
}

// Merge folds other into s taking the larger counters and the union of sets.
func (s *Stats) Merge(other Stats) {
	s.InvestmentsMade = max(s.InvestmentsMade, other.InvestmentsMade)
	s.HighRiskInvestments = max(s.HighRiskInvestments, other.HighRiskInvestments)
	s.ExtremeRiskInvestments = max(s.ExtremeRiskInvestments, other.ExtremeRiskInvestments)
	s.LossesExperienced = max(s.LossesExperienced, other.LossesExperienced)
	s.InvestmentsAfterLoss = max(s.InvestmentsAfterLoss, other.InvestmentsAfterLoss)
	s.QuizzesPassed = max(s.QuizzesPassed, other.QuizzesPassed)
	s.ThesesWritten = max(s.ThesesWritten, other.ThesesWritten)
	for _, a := range other.AssetClasses {
		s.AssetClasses, _ = addToSet(s.AssetClasses, a)
	}
	for _, r := range other.RiskLevels {
		s.RiskLevels, _ = addToSet(s.RiskLevels, r)
	}
	for _, c := range other.Coaches {
		s.Coaches, _ = addToSet(s.Coaches, c)
	}
}
