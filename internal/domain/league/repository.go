package league

import "context"

// StandingsRepository stores weekly cohorts. One cohort exists per season
// and tier; members are identity keys.
type StandingsRepository interface {
	// AddWeeklyXP atomically adds amount to identity's weekly score,
	// joining the cohort when needed.
	AddWeeklyXP(ctx context.Context, season string, tier Tier, identity string, amount int64) error

	// Cohort loads the cohort with previous ranks filled in. An unknown
	// cohort loads empty.
	Cohort(ctx context.Context, season string, tier Tier) (*Cohort, error)

	// SetPreviousRanks records last season's final positions for season.
	SetPreviousRanks(ctx context.Context, season string, ranks map[string]int) error

	// Seasons lists every season id that has cohort data.
	Seasons(ctx context.Context) ([]string, error)

	// MarkRolledOver claims the rollover of a cohort. It returns false when
	// the cohort was already claimed, which makes rollover at-most-once.
	MarkRolledOver(ctx context.Context, season string, tier Tier) (bool, error)
}
