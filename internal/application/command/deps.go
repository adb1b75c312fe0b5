// Package command contains the write operations of the progression engine.
// Every command that mutates a profile holds the per-identity lock and
// performs its read-modify-write through profile.Repository.Update; events
// are published only after the write committed.
package command

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Locker serializes work per key across processes. Acquire fails with
// ErrConcurrentClaimConflict when the lock cannot be taken in time.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Recorder receives business metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	XPCredited(source string, amount int64)
	StreakClaim(result string)
	MissionCompleted(kind string)
	SyncFailure(target string)
	RolloverApplied(tier string)
}

// FeatureFlags answers per-identity rollout questions.
type FeatureFlags interface {
	IsEnabled(flag, identity string) bool
}

// Feature flag names.
const (
	FlagBadges         = "badges"
	FlagRandomMissions = "random_missions"
	FlagMarketingSync  = "marketing_sync"
	FlagLeagueRewards  = "league_rewards"
	FlagThesisBonus    = "thesis_bonus"
)

// DefaultLockTTL bounds how long a crashed holder can block an identity.
const DefaultLockTTL = 10 * time.Second

type nopRecorder struct{}

func (nopRecorder) XPCredited(string, int64) {}
func (nopRecorder) StreakClaim(string)       {}
func (nopRecorder) MissionCompleted(string)  {}
func (nopRecorder) SyncFailure(string)       {}
func (nopRecorder) RolloverApplied(string)   {}

type allFlags struct{}

func (allFlags) IsEnabled(string, string) bool { return true }

// AllFlagsEnabled is a FeatureFlags that enables everything.
var AllFlagsEnabled FeatureFlags = allFlags{}

// systemRand draws from the goroutine-safe top-level generator.
type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }

// ══════════════════════════════════════════════════════════════════════════════
// SHARED DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Deps are the collaborators shared by the profile-mutating commands.
type Deps struct {
	Profiles  profile.Repository
	Locker    Locker
	Publisher shared.EventPublisher
	Recorder  Recorder
	Flags     FeatureFlags
	Clock     timeutil.Clock
	Logger    *logger.Logger

	// Location is where calendar days and league weeks are evaluated.
	Location *time.Location
	LockTTL  time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Flags == nil {
		d.Flags = AllFlagsEnabled
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.LockTTL <= 0 {
		d.LockTTL = DefaultLockTTL
	}
	return d
}

// errUnchanged aborts a repository update whose callback decided there is
// nothing to write.
var errUnchanged = errors.New("profile unchanged")

// lockKey is the per-identity lock name. The fingerprint keeps raw emails
// out of the lock backend.
func lockKey(id profile.Identity) string {
	return "identity:" + id.Fingerprint()
}

// lock takes the per-identity lock.
func (d Deps) lock(ctx context.Context, id profile.Identity) (func(), error) {
	if d.Locker == nil {
		return func() {}, nil
	}
	release, err := d.Locker.Acquire(ctx, lockKey(id), d.LockTTL)
	if err != nil {
		if errors.Is(err, shared.ErrConcurrentClaimConflict) {
			return nil, err
		}
		return nil, shared.WrapError("lock", "Acquire", shared.ErrStorageUnavailable, "lock backend", err)
	}
	return release, nil
}

// update runs fn under the identity lock inside a repository update.
// errUnchanged from fn is reported as (nil, nil).
func (d Deps) update(ctx context.Context, id profile.Identity, fn profile.UpdateFunc) (*profile.Profile, error) {
	release, err := d.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := d.Profiles.Update(ctx, id, d.inSeason(fn))
	if errors.Is(err, errUnchanged) {
		return nil, nil
	}
	return p, err
}

// inSeason wraps fn so the profile's weekly counter belongs to the league
// season of the current clock before fn credits anything.
func (d Deps) inSeason(fn profile.UpdateFunc) profile.UpdateFunc {
	season := league.SeasonFor(d.Clock.Now(), d.Location).ID
	return func(p *profile.Profile, exists bool) error {
		p.XP.EnterSeason(season)
		return fn(p, exists)
	}
}

// publish sends events, logging failures. The reward path never fails
// because of the bus.
func (d Deps) publish(events []shared.Event) {
	for _, ev := range events {
		if err := d.Publisher.Publish(ev); err != nil {
			d.Logger.Warn("publish failed",
				logger.String("event_type", string(ev.EventType())),
				logger.Err(err),
			)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CREDITING
// ══════════════════════════════════════════════════════════════════════════════

// credits accumulates the results of crediting awards to a profile.
type credits struct {
	Earned    int64
	LeveledUp bool
	Events    []shared.Event
	applied   []mission.Award
}

// creditAwards credits each award through the profile ledger, in order,
// collecting an xp_credited event per non-zero credit and a level_up
// event per crossed boundary.
func creditAwards(p *profile.Profile, awards []mission.Award, now time.Time) (credits, error) {
	var c credits
	for _, a := range awards {
		if a.Amount == 0 {
			continue
		}
		res, err := p.XP.Credit(a.Amount, a.Source, now)
		if err != nil {
			return credits{}, err
		}
		c.Earned += a.Amount
		c.applied = append(c.applied, a)
		c.Events = append(c.Events, shared.NewXPCreditedEvent(
			p.Key, a.Amount, string(a.Source), res.NewTotal, res.Level, res.LeveledUp, p.LeagueTier.String(), now,
		))
		if res.LeveledUp {
			c.LeveledUp = true
			c.Events = append(c.Events, shared.NewLevelUpEvent(p.Key, res.OldLevel, res.Level, now))
		}
	}
	return c, nil
}

// record reports credited XP to the recorder.
func (c credits) record(r Recorder) {
	for _, a := range c.applied {
		r.XPCredited(string(a.Source), a.Amount)
	}
}

// evaluateBadges adds newly earned badges and returns their events.
func evaluateBadges(p *profile.Profile, now time.Time) ([]profile.BadgeID, []shared.Event) {
	earned := profile.EvaluateBadges(p)
	events := make([]shared.Event, 0, len(earned))
	for _, b := range earned {
		events = append(events, shared.NewBadgeEarnedEvent(p.Key, string(b), now))
	}
	return earned, events
}
