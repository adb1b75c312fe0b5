package profile

// BadgeID names a cosmetic achievement.
type BadgeID string

const (
	BadgeFirstRisk      BadgeID = "first-risk"
	BadgeBoldMove       BadgeID = "bold-move"
	BadgeFearless       BadgeID = "fearless"
	BadgeResilient      BadgeID = "resilient"
	BadgeBattleTested   BadgeID = "battle-tested"
	BadgeDiversifier    BadgeID = "diversifier"
	BadgeAssetMaster    BadgeID = "asset-master"
	BadgeRiskSpectrum   BadgeID = "risk-spectrum"
	BadgeCoachCollector BadgeID = "coach-collector"
	BadgeMissionStarter BadgeID = "mission-starter"
	BadgeMissionVeteran BadgeID = "mission-veteran"
	BadgeHistoryScholar BadgeID = "history-scholar"
	BadgeStreak3        BadgeID = "streak-3"
	BadgeStreak7        BadgeID = "streak-7"
	BadgeStreak30       BadgeID = "streak-30"
)

// BadgeCategory groups badges for display.
type BadgeCategory string

const (
	CategoryCourage     BadgeCategory = "courage"
	CategoryExploration BadgeCategory = "exploration"
	CategoryMastery     BadgeCategory = "mastery"
	CategoryStreak      BadgeCategory = "streak"
)

// Badge is a badge definition with its earning rule.
type Badge struct {
	ID          BadgeID
	Name        string
	Description string
	Category    BadgeCategory
	earned      func(p *Profile) bool
}

// Badges is the closed set of badges in display order.
var Badges = []Badge{
	{BadgeFirstRisk, "First Steps", "Made your first investment", CategoryCourage,
		func(p *Profile) bool { return p.Stats.InvestmentsMade >= 1 }},
	{BadgeBoldMove, "Bold Move", "Made a high-risk investment", CategoryCourage,
		func(p *Profile) bool { return p.Stats.HighRiskInvestments >= 1 }},
	{BadgeFearless, "Fearless Explorer", "Made an extreme-risk investment", CategoryCourage,
		func(p *Profile) bool { return p.Stats.ExtremeRiskInvestments >= 1 }},
	{BadgeResilient, "Resilient Spirit", "Invested again after a loss", CategoryCourage,
		func(p *Profile) bool { return p.Stats.InvestmentsAfterLoss >= 1 }},
	{BadgeBattleTested, "Battle Tested", "Experienced 3 losses and kept going", CategoryCourage,
		func(p *Profile) bool { return p.Stats.LossesExperienced >= 3 }},
	{BadgeDiversifier, "Diversifier", "Explored 3 different asset classes", CategoryExploration,
		func(p *Profile) bool { return len(p.Stats.AssetClasses) >= 3 }},
	{BadgeAssetMaster, "Asset Master", "Explored all 6 asset classes", CategoryExploration,
		func(p *Profile) bool { return len(p.Stats.AssetClasses) >= 6 }},
	{BadgeRiskSpectrum, "Full Spectrum", "Tried all risk levels", CategoryExploration,
		func(p *Profile) bool { return len(p.Stats.RiskLevels) >= 5 }},
	{BadgeCoachCollector, "Open Minded", "Got advice from all 4 coaches", CategoryExploration,
		func(p *Profile) bool { return len(p.Stats.Coaches) >= 4 }},
	{BadgeMissionStarter, "Mission Starter", "Completed your first mission", CategoryMastery,
		func(p *Profile) bool { return p.MissionsCompleted() >= 1 }},
	{BadgeMissionVeteran, "Mission Veteran", "Completed 3 missions", CategoryMastery,
		func(p *Profile) bool { return p.MissionsCompleted() >= 3 }},
	{BadgeHistoryScholar, "History Scholar", "Completed all 6 historical missions", CategoryMastery,
		func(p *Profile) bool { return len(p.CompletedMissions) >= 6 }},
	{BadgeStreak3, "3-Day Streak", "3 days in a row!", CategoryStreak,
		func(p *Profile) bool { return p.Streak.Longest >= 3 }},
	{BadgeStreak7, "Weekly Warrior", "7 days in a row!", CategoryStreak,
		func(p *Profile) bool { return p.Streak.Longest >= 7 }},
	{BadgeStreak30, "Monthly Legend", "30 days in a row!", CategoryStreak,
		func(p *Profile) bool { return p.Streak.Longest >= 30 }},
}

// EvaluateBadges adds every newly earned badge to p and returns them.
// Badges are never revoked.
func EvaluateBadges(p *Profile) []BadgeID {
	var earned []BadgeID
	for _, b := range Badges {
		if p.HasBadge(b.ID) || !b.earned(p) {
			continue
		}
		p.Badges = append(p.Badges, b.ID)
		earned = append(earned, b.ID)
	}
	return earned
}
