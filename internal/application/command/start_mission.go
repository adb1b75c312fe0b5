package command

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MISSION DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// MissionDeps extends Deps with the mission content and the run store.
type MissionDeps struct {
	Deps
	Catalog *mission.Catalog
	Runs    mission.RunRepository

	// Rand drives outcome variance and scenario generation.
	Rand mission.RandomSource
}

func (d MissionDeps) withDefaults() MissionDeps {
	d.Deps = d.Deps.withDefaults()
	if d.Rand == nil {
		d.Rand = systemRand{}
	}
	return d
}

// missionFor resolves the content a run plays: generated scenarios travel
// with the run, scripted ones come from the catalog.
func (d MissionDeps) missionFor(r *mission.Run) (*mission.Mission, error) {
	if r.Generated != nil {
		return r.Generated, nil
	}
	return d.Catalog.Mission(r.MissionKey)
}

// loadRun fetches a run and checks that id owns it.
func (d MissionDeps) loadRun(ctx context.Context, id profile.Identity, runID string) (*mission.Run, *mission.Mission, error) {
	run, err := d.Runs.Get(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if err := run.CheckOwner(id.Key()); err != nil {
		return nil, nil, err
	}
	m, err := d.missionFor(run)
	if err != nil {
		return nil, nil, err
	}
	return run, m, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// START MISSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// StartMissionCommand opens a run of a scripted mission, or of a freshly
// generated scenario when Random is set.
type StartMissionCommand struct {
	Email      string
	SessionID  string
	MissionKey string
	CoachID    string
	Random     bool
}

// StartMissionResult carries the new run and the content it plays.
type StartMissionResult struct {
	Run     *mission.Run
	Mission *mission.Mission
	Coach   mission.Coach
	Advice  string
}

// StartMissionHandler handles StartMissionCommand.
type StartMissionHandler struct {
	deps MissionDeps
}

// NewStartMissionHandler creates a new StartMissionHandler.
func NewStartMissionHandler(deps MissionDeps) *StartMissionHandler {
	return &StartMissionHandler{deps: deps.withDefaults()}
}

// Handle starts the run. A scripted mission whose prerequisites are not all
// completed is rejected with ErrMissionLocked.
func (h *StartMissionHandler) Handle(ctx context.Context, cmd StartMissionCommand) (*StartMissionResult, error) {
	id, err := profile.NewIdentity(cmd.Email, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	runID := uuid.NewString()

	var m *mission.Mission
	if cmd.Random {
		if !h.deps.Flags.IsEnabled(FlagRandomMissions, id.Key()) {
			return nil, shared.WrapError("mission", "Start", shared.ErrForbidden, "random missions are disabled", nil)
		}
		m = mission.Generate(h.deps.Rand, runID, now)
	} else {
		m, err = h.deps.Catalog.Mission(cmd.MissionKey)
		if err != nil {
			return nil, err
		}
		if err := h.checkUnlocked(ctx, id, m); err != nil {
			return nil, err
		}
	}

	coach := h.deps.Catalog.Coach(cmd.CoachID)
	run := mission.NewRun(runID, m, id.Key(), coach.ID, now)
	if err := h.deps.Runs.Save(ctx, run); err != nil {
		return nil, err
	}

	h.deps.Logger.Info("mission started",
		logger.Operation("start_mission"),
		logger.Identity(id.Fingerprint()),
		logger.MissionKey(m.Key),
		logger.RunID(run.ID),
	)
	return &StartMissionResult{
		Run:     run,
		Mission: m,
		Coach:   coach,
		Advice:  coach.Advice(m),
	}, nil
}

func (h *StartMissionHandler) checkUnlocked(ctx context.Context, id profile.Identity, m *mission.Mission) error {
	if len(m.Prerequisites) == 0 {
		return nil
	}
	completed := map[string]bool{}
	p, err := h.deps.Profiles.Get(ctx, id)
	switch {
	case err == nil:
		completed = p.CompletedSet()
	case !errors.Is(err, shared.ErrProfileNotFound):
		return err
	}
	if !mission.Unlocked(h.deps.Catalog.Missions(), completed)[m.Key] {
		return shared.WrapError("mission", "Start", shared.ErrMissionLocked, "mission "+m.Key, nil)
	}
	return nil
}
