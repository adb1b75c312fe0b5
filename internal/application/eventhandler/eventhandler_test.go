package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/external/marketing"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/memory"
)

var at = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

func credit(identity string, amount int64, source progress.Source, tier string) shared.XPCreditedEvent {
	return shared.NewXPCreditedEvent(identity, amount, string(source), amount, 1, false, tier, at)
}

func TestStandingsFeed_AddsWeeklyXP(t *testing.T) {
	standings := memory.NewStandingsRepository(1, 1, time.UTC)
	h := NewStandingsFeedHandler(standings, StandingsFeedConfig{})

	require.NoError(t, h.Handle(credit("session:a", 10, progress.SourceStreakClaim, "silver")))
	require.NoError(t, h.Handle(credit("session:a", 25, progress.SourceMissionComplete, "silver")))

	season := league.SeasonFor(at, time.UTC)
	cohort, err := standings.Cohort(context.Background(), season.ID, league.Silver)
	require.NoError(t, err)
	ranked := cohort.Ranked()
	require.Len(t, ranked, 1)
	assert.Equal(t, "session:a", ranked[0].Identity)
	assert.Equal(t, int64(35), ranked[0].WeeklyXP)
}

func TestStandingsFeed_SkipsNonCompetitiveCredits(t *testing.T) {
	standings := memory.NewStandingsRepository(1, 1, time.UTC)
	h := NewStandingsFeedHandler(standings, StandingsFeedConfig{})

	require.NoError(t, h.Handle(credit("session:a", 400, progress.SourceLeagueReward, "bronze")))
	require.NoError(t, h.Handle(credit("email:b@example.com", 5000, progress.SourceSignupBonus, "bronze")))
	require.NoError(t, h.Handle(credit("session:c", 900, progress.SourceSync, "bronze")))

	cohort, err := standings.Cohort(context.Background(), league.SeasonFor(at, time.UTC).ID, league.Bronze)
	require.NoError(t, err)
	assert.Zero(t, cohort.Size())
}

func TestStandingsFeed_RejectsUnknownTier(t *testing.T) {
	h := NewStandingsFeedHandler(memory.NewStandingsRepository(1, 1, time.UTC), StandingsFeedConfig{})

	err := h.Handle(credit("session:a", 10, progress.SourceStreakClaim, "mythril"))
	assert.ErrorIs(t, err, shared.ErrInvalidTier)
}

type fakePusher struct {
	mu       sync.Mutex
	contacts []marketing.Contact
	err      error
}

func (f *fakePusher) UpsertContact(_ context.Context, c marketing.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, c)
	return f.err
}

type failureRecorder struct{ targets []string }

func (r *failureRecorder) XPCredited(string, int64) {}
func (r *failureRecorder) StreakClaim(string)       {}
func (r *failureRecorder) MissionCompleted(string)  {}
func (r *failureRecorder) RolloverApplied(string)   {}
func (r *failureRecorder) SyncFailure(target string) {
	r.targets = append(r.targets, target)
}

type flagOff struct{}

func (flagOff) IsEnabled(string, string) bool { return false }

func signedUp() shared.ProfileSignedUpEvent {
	return shared.NewProfileSignedUpEvent("email:ada@example.com", "ada@example.com", "f1ngerprint", 3, 45, 1, false, "homepage_streak", at)
}

func TestContactSync_PushesFingerprint(t *testing.T) {
	pusher := &fakePusher{}
	h := NewContactSyncHandler(pusher, ContactSyncConfig{})

	require.NoError(t, h.Handle(signedUp()))
	require.Len(t, pusher.contacts, 1)
	c := pusher.contacts[0]
	assert.Equal(t, "f1ngerprint", c.ContactID)
	assert.Equal(t, 3, c.Streak)
	assert.Equal(t, int64(45), c.TotalXP)
	assert.Equal(t, at, c.SubscribeAt)
}

func TestContactSync_FailureIsSoft(t *testing.T) {
	pusher := &fakePusher{err: errors.New("boom")}
	rec := &failureRecorder{}
	h := NewContactSyncHandler(pusher, ContactSyncConfig{Recorder: rec})

	assert.NoError(t, h.Handle(signedUp()))
	assert.Equal(t, []string{"marketing"}, rec.targets)
}

func TestContactSync_DisabledClientIsNotAFailure(t *testing.T) {
	pusher := &fakePusher{err: marketing.ErrDisabled}
	rec := &failureRecorder{}
	h := NewContactSyncHandler(pusher, ContactSyncConfig{Recorder: rec})

	assert.NoError(t, h.Handle(signedUp()))
	assert.Empty(t, rec.targets)
}

func TestContactSync_RespectsFlag(t *testing.T) {
	pusher := &fakePusher{}
	h := NewContactSyncHandler(pusher, ContactSyncConfig{Flags: flagOff{}})

	require.NoError(t, h.Handle(signedUp()))
	assert.Empty(t, pusher.contacts)
}
