package command

import (
	"context"

	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC PROGRESS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SyncProgressCommand pushes client-cached progress to the server.
type SyncProgressCommand struct {
	Email             string
	SessionID         string
	Streak            int
	TotalXP           int64
	CompletedMissions []string
}

// SyncProgressResult reports the merged server state.
type SyncProgressResult struct {
	CurrentStreak     int
	TotalXP           int64
	PlayerLevel       int64
	CompletedMissions int
}

// SyncProgressHandler handles SyncProgressCommand.
type SyncProgressHandler struct {
	deps Deps
}

// NewSyncProgressHandler creates a new SyncProgressHandler.
func NewSyncProgressHandler(deps Deps) *SyncProgressHandler {
	return &SyncProgressHandler{deps: deps.withDefaults()}
}

// Handle merges the snapshot: streak and XP by maximum, completed missions
// by union. Server state is never lowered. Storage failures surface as
// ErrSyncFailure wrapping the cause so callers can treat sync as best effort.
func (h *SyncProgressHandler) Handle(ctx context.Context, cmd SyncProgressCommand) (*SyncProgressResult, error) {
	id, err := profile.NewIdentity(cmd.Email, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	log := h.deps.Logger.With(logger.Operation("sync_progress"), logger.Identity(id.Fingerprint()))

	p, err := h.deps.update(ctx, id, func(p *profile.Profile, _ bool) error {
		p.ApplySnapshot(profile.Snapshot{
			Streak:            cmd.Streak,
			TotalXP:           cmd.TotalXP,
			CompletedMissions: cmd.CompletedMissions,
		})
		return nil
	})
	if err != nil {
		h.deps.Recorder.SyncFailure("profile")
		log.Warn("sync failed", logger.Err(err))
		return nil, shared.WrapError("sync", "SyncProgress", shared.ErrSyncFailure, "profile sync", err)
	}

	h.deps.publish([]shared.Event{shared.NewProfileSyncedEvent(
		p.Key, p.XP.Total, p.Streak.Current, len(p.CompletedMissions), now,
	)})
	return &SyncProgressResult{
		CurrentStreak:     p.Streak.Current,
		TotalXP:           p.XP.Total,
		PlayerLevel:       p.Level(),
		CompletedMissions: len(p.CompletedMissions),
	}, nil
}
