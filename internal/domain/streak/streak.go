// Package streak implements the daily-claim state machine.
//
// A claim succeeds at most once per calendar date. Consecutive dates extend
// the streak, any gap resets it to one. Milestone bonuses are evaluated in a
// fixed order and are mutually exclusive per claim.
package streak

import (
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/pkg/timeutil"
)

// Reward constants.
const (
	BaseReward  int64 = 10
	WeekBonus   int64 = 50  // exactly day 7
	MonthBonus  int64 = 200 // exactly day 30
	WeeklyBonus int64 = 25  // any other multiple of 7
)

const (
	weekMilestone  = 7
	monthMilestone = 30
)

// State is the streak portion of a player profile.
type State struct {
	Current      int        `json:"current"`
	Longest      int        `json:"longest"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// Status is the read-only view returned to clients.
type Status struct {
	CurrentStreak int
	TodayClaimed  bool
}

// ClaimResult describes the outcome of a claim.
type ClaimResult struct {
	Streak         int
	XPEarned       int64
	BonusEarned    bool
	AlreadyClaimed bool
	Credit         progress.CreditResult
}

// ClaimedOn reports whether the last claim happened on today's date in loc.
func (s State) ClaimedOn(today time.Time, loc *time.Location) bool {
	return s.LastActiveAt != nil && timeutil.SameDate(*s.LastActiveAt, today, loc)
}

// StatusAt derives the client view for today.
func StatusAt(s State, today time.Time, loc *time.Location) Status {
	return Status{
		CurrentStreak: s.Current,
		TodayClaimed:  s.ClaimedOn(today, loc),
	}
}

// Bonus returns the milestone bonus for a streak length. The day-7 and
// day-30 checks run before the generic multiple-of-7 check, so those two
// days receive only their special bonus.
func Bonus(streak int) int64 {
	switch {
	case streak == weekMilestone:
		return WeekBonus
	case streak == monthMilestone:
		return MonthBonus
	case streak > 0 && streak%weekMilestone == 0:
		return WeeklyBonus
	default:
		return 0
	}
}

// Next computes the streak length a claim on today would produce.
func (s State) Next(today time.Time, loc *time.Location) int {
	if s.LastActiveAt != nil && timeutil.IsPreviousDay(*s.LastActiveAt, today, loc) {
		return s.Current + 1
	}
	return 1
}

// Claim applies a daily claim to s and credits the reward to ledger.
// Claiming twice on the same date returns AlreadyClaimed and changes nothing.
func Claim(s *State, ledger *progress.Ledger, today time.Time, loc *time.Location) (ClaimResult, error) {
	if s.ClaimedOn(today, loc) {
		return ClaimResult{Streak: s.Current, AlreadyClaimed: true}, nil
	}

	next := s.Next(today, loc)
	bonus := Bonus(next)
	earned := BaseReward + bonus

	credit, err := ledger.Credit(earned, progress.SourceStreakClaim, today)
	if err != nil {
		return ClaimResult{}, err
	}

	at := today.UTC()
	s.Current = next
	s.LastActiveAt = &at
	if next > s.Longest {
		s.Longest = next
	}

	return ClaimResult{
		Streak:      next,
		XPEarned:    earned,
		BonusEarned: bonus > 0,
		Credit:      credit,
	}, nil
}
