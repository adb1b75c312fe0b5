package query

import (
	"context"
	"fmt"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MISSIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListMissionsQuery optionally identifies the player. Anonymous callers see
// the catalog with only prerequisite-free missions unlocked.
type ListMissionsQuery struct {
	Email     string
	SessionID string
}

// MissionSummaryDTO is one catalog entry with the player's unlock state.
type MissionSummaryDTO struct {
	Key           string       `json:"key"`
	Title         string       `json:"title"`
	Year          int          `json:"year"`
	Kind          mission.Kind `json:"kind"`
	Prerequisites []string     `json:"prerequisites"`
	Unlocked      bool         `json:"unlocked"`
	Completed     bool         `json:"completed"`
}

// MissionListDTO is the catalog view.
type MissionListDTO struct {
	Missions []MissionSummaryDTO `json:"missions"`
	Coaches  []mission.Coach     `json:"coaches"`
}

// ListMissionsHandler handles ListMissionsQuery.
type ListMissionsHandler struct {
	deps Deps
}

// NewListMissionsHandler creates a new ListMissionsHandler.
func NewListMissionsHandler(deps Deps) *ListMissionsHandler {
	return &ListMissionsHandler{deps: deps.withDefaults()}
}

func (h *ListMissionsHandler) Handle(ctx context.Context, q ListMissionsQuery) (*MissionListDTO, error) {
	completed := map[string]bool{}
	if id, err := profile.NewIdentity(q.Email, q.SessionID); err == nil {
		p, err := h.deps.findProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			completed = p.CompletedSet()
		}
	}

	missions := h.deps.Catalog.Missions()
	unlocked := mission.Unlocked(missions, completed)
	dto := &MissionListDTO{
		Missions: make([]MissionSummaryDTO, 0, len(missions)),
		Coaches:  h.deps.Catalog.Coaches(),
	}
	for _, m := range missions {
		dto.Missions = append(dto.Missions, MissionSummaryDTO{
			Key:           m.Key,
			Title:         m.Title,
			Year:          m.Year,
			Kind:          m.Kind,
			Prerequisites: append([]string{}, m.Prerequisites...),
			Unlocked:      unlocked[m.Key],
			Completed:     completed[m.Key],
		})
	}
	return dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET RUN / WHAT-IF QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetRunQuery loads a run owned by the caller.
type GetRunQuery struct {
	Email     string
	SessionID string
	RunID     string
}

// RunDTO is a run together with the content it plays.
type RunDTO struct {
	Run     *mission.Run     `json:"run"`
	Mission *mission.Mission `json:"mission"`
	Accepts []mission.Event  `json:"accepts"`
	Advice  string           `json:"advice,omitempty"`
}

// WhatIfDTO compares every option of a resolved run.
type WhatIfDTO struct {
	RunID       string               `json:"runId"`
	MissionKey  string               `json:"missionKey"`
	Outcome     *mission.Outcome     `json:"outcome"`
	Projections []mission.Projection `json:"projections"`
}

// GetRunHandler serves GetRunQuery and the what-if comparison.
type GetRunHandler struct {
	deps Deps
}

// NewGetRunHandler creates a new GetRunHandler.
func NewGetRunHandler(deps Deps) *GetRunHandler {
	return &GetRunHandler{deps: deps.withDefaults()}
}

func (h *GetRunHandler) load(ctx context.Context, q GetRunQuery) (*mission.Run, *mission.Mission, error) {
	id, err := profile.NewIdentity(q.Email, q.SessionID)
	if err != nil {
		return nil, nil, err
	}
	run, err := h.deps.Runs.Get(ctx, q.RunID)
	if err != nil {
		return nil, nil, err
	}
	if err := run.CheckOwner(id.Key()); err != nil {
		return nil, nil, err
	}
	if run.Generated != nil {
		return run, run.Generated, nil
	}
	m, err := h.deps.Catalog.Mission(run.MissionKey)
	if err != nil {
		return nil, nil, err
	}
	return run, m, nil
}

func (h *GetRunHandler) Handle(ctx context.Context, q GetRunQuery) (*RunDTO, error) {
	run, m, err := h.load(ctx, q)
	if err != nil {
		return nil, err
	}
	return &RunDTO{
		Run:     run,
		Mission: m,
		Accepts: mission.Accepts(run.State),
		Advice:  h.deps.Catalog.Coach(run.CoachID).Advice(m),
	}, nil
}

// WhatIf is available once the run's outcome was resolved.
func (h *GetRunHandler) WhatIf(ctx context.Context, q GetRunQuery) (*WhatIfDTO, error) {
	run, m, err := h.load(ctx, q)
	if err != nil {
		return nil, err
	}
	if run.Outcome == nil {
		return nil, shared.WrapError("mission", "WhatIf", shared.ErrInvalidTransition,
			fmt.Sprintf("run %s has no outcome yet", run.ID), nil)
	}
	return &WhatIfDTO{
		RunID:       run.ID,
		MissionKey:  run.MissionKey,
		Outcome:     run.Outcome,
		Projections: mission.WhatIf(m, run.SelectedOptionID),
	}, nil
}
