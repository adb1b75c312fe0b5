// Package eventhandler contains the subscribers that react to domain events
// after the originating write committed.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS FEED
// Mirrors every ledger credit into the weekly cohort of the season the
// credit happened in.
// ══════════════════════════════════════════════════════════════════════════════

// StandingsFeedHandler consumes progress.xp_credited events.
type StandingsFeedHandler struct {
	standings league.StandingsRepository
	location  *time.Location
	timeout   time.Duration
	log       *logger.Logger
}

// StandingsFeedConfig configures StandingsFeedHandler.
type StandingsFeedConfig struct {
	// Location decides which season a credit belongs to.
	Location *time.Location

	// Timeout bounds a single standings write.
	Timeout time.Duration

	Logger *logger.Logger
}

// NewStandingsFeedHandler creates a new StandingsFeedHandler.
func NewStandingsFeedHandler(standings league.StandingsRepository, config StandingsFeedConfig) *StandingsFeedHandler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}
	return &StandingsFeedHandler{
		standings: standings,
		location:  config.Location,
		timeout:   config.Timeout,
		log:       config.Logger.With(logger.Component("standings_feed")),
	}
}

// Handle adds the credited amount to the player's weekly score. Credits
// whose source does not compete (league rewards, signup seed, sync) are
// ignored, mirroring the profile's own weekly counter.
func (h *StandingsFeedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.XPCreditedEvent)
	if !ok {
		return retry.Permanent(fmt.Errorf("standings feed: unexpected event %T", event))
	}
	if e.Amount <= 0 || !progress.Source(e.Source).CountsWeekly() {
		return nil
	}

	tier, err := league.ParseTier(e.Tier)
	if err != nil {
		return retry.Permanent(fmt.Errorf("standings feed: %w", err))
	}
	season := league.SeasonFor(e.OccurredAt(), h.location)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.standings.AddWeeklyXP(ctx, season.ID, tier, e.AggregateID(), e.Amount); err != nil {
		h.log.Warn("weekly xp not recorded",
			logger.Season(season.ID),
			logger.Tier(tier.String()),
			logger.XPAmount(e.Amount),
			logger.Err(err),
		)
		return err
	}
	return nil
}
