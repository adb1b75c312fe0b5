// Package query contains the read operations of the progression engine.
// Queries never write and never take the identity lock.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/timeutil"
)

// Deps are the read-side collaborators.
type Deps struct {
	Profiles  profile.Repository
	Standings league.StandingsRepository
	Catalog   *mission.Catalog
	Runs      mission.RunRepository
	Clock     timeutil.Clock
	Logger    *logger.Logger
	Location  *time.Location
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return d
}

// findProfile loads the profile for id. A missing profile is (nil, nil).
func (d Deps) findProfile(ctx context.Context, id profile.Identity) (*profile.Profile, error) {
	p, err := d.Profiles.Get(ctx, id)
	if errors.Is(err, shared.ErrProfileNotFound) {
		return nil, nil
	}
	return p, err
}

// displayID is a stable public handle for an identity key. Raw keys carry
// email addresses and are never returned to other players.
func displayID(key string) string {
	return profile.FingerprintKey(key)[:10]
}
