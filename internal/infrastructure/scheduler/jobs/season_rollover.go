// Package jobs contains the scheduled jobs of the progression engine.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/legacy-quest/progression-engine/internal/application/command"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON ROLLOVER JOB
// ══════════════════════════════════════════════════════════════════════════════

// Roller closes ended seasons. *command.RolloverSeasonHandler satisfies it.
type Roller interface {
	Handle(ctx context.Context, cmd command.RolloverSeasonCommand) (*command.RolloverSeasonResult, error)
}

// SeasonRolloverJob closes every ended season that still has unprocessed
// cohorts. Running it twice is harmless: processed cohorts are skipped.
type SeasonRolloverJob struct {
	roller  Roller
	timeout time.Duration
	log     *logger.Logger

	lastStats atomic.Pointer[RolloverStats]
}

// RolloverStats summarizes the latest run.
type RolloverStats struct {
	FinishedAt time.Time
	Cohorts    int
	Promoted   int
	Relegated  int
	Rewarded   int
	Skipped    int
}

// NewSeasonRolloverJob creates the job. A zero timeout means 5 minutes.
func NewSeasonRolloverJob(roller Roller, timeout time.Duration, log *logger.Logger) *SeasonRolloverJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Discard()
	}
	return &SeasonRolloverJob{
		roller:  roller,
		timeout: timeout,
		log:     log.With(logger.Component("season_rollover_job")),
	}
}

func (j *SeasonRolloverJob) Name() string { return "season_rollover" }

func (j *SeasonRolloverJob) Description() string {
	return "Promotes, relegates and rewards the cohorts of ended league seasons"
}

// Run rolls over all ended seasons. Partial progress is kept when some
// cohorts fail; the next run retries only those.
func (j *SeasonRolloverJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	res, err := j.roller.Handle(ctx, command.RolloverSeasonCommand{})
	stats := &RolloverStats{FinishedAt: time.Now()}
	if res != nil {
		stats.Cohorts = len(res.Plans)
		stats.Skipped = res.Skipped
		for _, p := range res.Plans {
			stats.Promoted += len(p.Promoted())
			stats.Relegated += len(p.Relegated())
			stats.Rewarded += len(p.Rewards)
		}
	}
	j.lastStats.Store(stats)

	j.log.Info("rollover pass finished",
		logger.Int("cohorts", stats.Cohorts),
		logger.Int("promoted", stats.Promoted),
		logger.Int("relegated", stats.Relegated),
		logger.Int("skipped", stats.Skipped),
	)
	return err
}

// LastStats returns the stats of the latest run, or nil before the first.
func (j *SeasonRolloverJob) LastStats() *RolloverStats {
	return j.lastStats.Load()
}
