// Package progress implements the experience-point ledger: total and weekly
// XP, the leveling curve and a bounded log of recent credits.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// ══════════════════════════════════════════════════════════════════════════════

// XPPerLevel is the width of every level band. The curve is linear and
// unbounded: level = total/1000 + 1.
const XPPerLevel int64 = 1000

// RecentLimit bounds the transaction log kept on the ledger.
const RecentLimit = 50

// Level derives the player level from total XP. Level 1 is the floor.
func Level(total int64) int64 {
	if total < 0 {
		return 1
	}
	return total/XPPerLevel + 1
}

// ══════════════════════════════════════════════════════════════════════════════
// SOURCES
// ══════════════════════════════════════════════════════════════════════════════

// Source identifies why XP was granted.
type Source string

const (
	SourceStreakClaim      Source = "streak_claim"
	SourceMissionComplete  Source = "mission_complete"
	SourceMissionFirstTime Source = "mission_first_time"
	SourceQuizCorrect      Source = "quiz_correct"
	SourceQuizPerfect      Source = "quiz_perfect"
	SourceThesisWritten    Source = "thesis_written"
	SourceFirstInvestment  Source = "first_investment"
	SourceHighRisk         Source = "high_risk"
	SourceExtremeRisk      Source = "extreme_risk"
	SourceLossLesson       Source = "loss_lesson"
	SourceInvestAfterLoss  Source = "invest_after_loss"
	SourceNewAssetClass    Source = "new_asset_class"
	SourceNewRiskLevel     Source = "new_risk_level"
	SourceLeagueReward     Source = "league_reward"
	SourceSignupBonus      Source = "signup_bonus"
	SourceSync             Source = "sync"
)

// IsValid reports whether s is one of the known sources.
func (s Source) IsValid() bool {
	switch s {
	case SourceStreakClaim, SourceMissionComplete, SourceMissionFirstTime,
		SourceQuizCorrect, SourceQuizPerfect, SourceThesisWritten,
		SourceFirstInvestment, SourceHighRisk, SourceExtremeRisk,
		SourceLossLesson, SourceInvestAfterLoss, SourceNewAssetClass,
		SourceNewRiskLevel, SourceLeagueReward, SourceSignupBonus, SourceSync:
		return true
	default:
		return false
	}
}

// CountsWeekly reports whether credits from s compete in the weekly league.
// Rewards paid by the league itself and XP carried over from elsewhere
// (signup seed, client sync) only raise the total.
func (s Source) CountsWeekly() bool {
	switch s {
	case SourceLeagueReward, SourceSignupBonus, SourceSync:
		return false
	default:
		return true
	}
}

// Fixed rewards per source. Streak and league rewards are computed elsewhere.
const (
	RewardMissionComplete  int64 = 100
	RewardMissionFirstTime int64 = 50
	RewardFirstInvestment  int64 = 50
	RewardHighRisk         int64 = 20
	RewardExtremeRisk      int64 = 25
	RewardLossLesson       int64 = 30
	RewardInvestAfterLoss  int64 = 40
	RewardNewAssetClass    int64 = 15
	RewardNewRiskLevel     int64 = 15
	RewardQuizCorrect      int64 = 10
	RewardQuizPerfect      int64 = 50
	RewardThesisBase       int64 = 10
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Transaction is one entry of the recent-credit log.
type Transaction struct {
	Amount int64     `json:"amount"`
	Source Source    `json:"source"`
	At     time.Time `json:"at"`
}

// Ledger tracks total and weekly experience. Weekly accumulates for one
// league season only, named by Season.
type Ledger struct {
	Total  int64         `json:"total_xp"`
	Weekly int64         `json:"weekly_xp"`
	Season string        `json:"weekly_season,omitempty"`
	Recent []Transaction `json:"recent,omitempty"`
}

// CreditResult is returned by Credit.
type CreditResult struct {
	Amount    int64
	NewTotal  int64
	OldLevel  int64
	Level     int64
	LeveledUp bool
}

// ValidateAmount rejects negative amounts.
func ValidateAmount(amount int64) error {
	if amount < 0 {
		return shared.WrapError("progress", "Credit", shared.ErrInvalidAmount,
			fmt.Sprintf("amount %d is negative", amount), shared.ErrNegativeValue)
	}
	return nil
}

// AmountFromFloat converts a client-supplied number into whole XP. NaN,
// infinities and negatives fail with ErrInvalidAmount; fractions are floored.
func AmountFromFloat(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, shared.WrapError("progress", "Credit", shared.ErrInvalidAmount,
			fmt.Sprintf("amount %v is not finite", v), nil)
	}
	if v < 0 {
		return 0, shared.WrapError("progress", "Credit", shared.ErrInvalidAmount,
			fmt.Sprintf("amount %v is negative", v), shared.ErrNegativeValue)
	}
	if v > math.MaxInt64/2 {
		return 0, shared.WrapError("progress", "Credit", shared.ErrInvalidAmount,
			fmt.Sprintf("amount %v is out of range", v), shared.ErrValueOutOfRange)
	}
	return int64(math.Floor(v)), nil
}

// Credit adds amount to Total, and to Weekly when the source counts toward
// the league. On error the ledger is untouched.
func (l *Ledger) Credit(amount int64, source Source, at time.Time) (CreditResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return CreditResult{}, err
	}
	if !source.IsValid() {
		return CreditResult{}, shared.WrapError("progress", "Credit", shared.ErrInvalidInput,
			fmt.Sprintf("unknown xp source %q", source), nil)
	}
	if amount > math.MaxInt64-l.Total {
		return CreditResult{}, shared.WrapError("progress", "Credit", shared.ErrInvalidAmount,
			fmt.Sprintf("crediting %d to %d overflows", amount, l.Total), shared.ErrValueOutOfRange)
	}

	before := Level(l.Total)
	l.Total += amount
	if source.CountsWeekly() {
		l.Weekly += amount
	}
	after := Level(l.Total)

	if amount > 0 {
		l.Recent = append(l.Recent, Transaction{Amount: amount, Source: source, At: at.UTC()})
		if over := len(l.Recent) - RecentLimit; over > 0 {
			l.Recent = append([]Transaction(nil), l.Recent[over:]...)
		}
	}

	return CreditResult{
		Amount:    amount,
		NewTotal:  l.Total,
		OldLevel:  before,
		Level:     after,
		LeveledUp: after > before,
	}, nil
}

// Level returns the derived level.
func (l Ledger) Level() int64 {
	return Level(l.Total)
}

// LevelProgress is the fraction of the current level band already earned.
func (l Ledger) LevelProgress() float64 {
	return float64(l.Total%XPPerLevel) / float64(XPPerLevel)
}

// XPToNextLevel is the XP still missing to reach the next level.
func (l Ledger) XPToNextLevel() int64 {
	return XPPerLevel - l.Total%XPPerLevel
}

// EnterSeason makes id the season Weekly accumulates for. Weekly XP left
// over from any other season, or from an unstamped ledger, is dropped.
func (l *Ledger) EnterSeason(id string) {
	if l.Season == id {
		return
	}
	l.Season = id
	l.Weekly = 0
}

// CloseSeason zeroes Weekly if it still belongs to season id. XP already
// earned in a later season is kept.
func (l *Ledger) CloseSeason(id string) {
	if l.Season == "" || l.Season == id {
		l.Weekly = 0
	}
}

// WeeklyIn is the weekly XP earned in season id.
func (l Ledger) WeeklyIn(id string) int64 {
	if l.Season != id {
		return 0
	}
	return l.Weekly
}

// RaiseTotal lifts Total to at least v without logging a transaction. It is
// the merge path: totals never decrease.
func (l *Ledger) RaiseTotal(v int64) {
	if v > l.Total {
		l.Total = v
	}
}
