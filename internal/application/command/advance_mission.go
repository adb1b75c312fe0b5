package command

import (
	"context"
	"fmt"

	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADVANCE MISSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// Action is a player step on a run.
type Action string

const (
	ActionBegin        Action = "begin"
	ActionBack         Action = "back"
	ActionSelect       Action = "select"
	ActionConfirm      Action = "confirm"
	ActionSubmitThesis Action = "submit_thesis"
	ActionSkipThesis   Action = "skip_thesis"
	ActionContinue     Action = "continue"
	ActionAnswer       Action = "answer"
	ActionFinishQuiz   Action = "finish_quiz"
)

// AdvanceMissionCommand applies one action to a run.
type AdvanceMissionCommand struct {
	Email     string
	SessionID string
	RunID     string
	Action    Action

	OptionID string
	Thesis   string
	Question int
	Choice   int
}

// AdvanceMissionResult is the run after the action. Correct is set for
// answers; Completion is set once the quiz was finished.
type AdvanceMissionResult struct {
	Run        *mission.Run
	Accepts    []mission.Event
	Correct    *bool
	Completion *CompleteMissionResult
}

// AdvanceMissionHandler handles AdvanceMissionCommand.
type AdvanceMissionHandler struct {
	deps     MissionDeps
	complete *CompleteMissionHandler
}

// NewAdvanceMissionHandler creates a new AdvanceMissionHandler.
func NewAdvanceMissionHandler(deps MissionDeps) *AdvanceMissionHandler {
	deps = deps.withDefaults()
	return &AdvanceMissionHandler{
		deps:     deps,
		complete: NewCompleteMissionHandler(deps),
	}
}

// Handle performs a read-transition-write of the run under the identity
// lock. Finishing the quiz completes the mission.
func (h *AdvanceMissionHandler) Handle(ctx context.Context, cmd AdvanceMissionCommand) (*AdvanceMissionResult, error) {
	if cmd.Action == ActionFinishQuiz {
		done, err := h.complete.Handle(ctx, CompleteMissionCommand{
			Email:     cmd.Email,
			SessionID: cmd.SessionID,
			RunID:     cmd.RunID,
		})
		if err != nil {
			return nil, err
		}
		return &AdvanceMissionResult{Completion: done}, nil
	}

	id, err := profile.NewIdentity(cmd.Email, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	release, err := h.deps.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	run, m, err := h.deps.loadRun(ctx, id, cmd.RunID)
	if err != nil {
		return nil, err
	}

	result := &AdvanceMissionResult{Run: run}
	if err := h.apply(run, m, cmd, result); err != nil {
		return nil, err
	}
	if err := h.deps.Runs.Save(ctx, run); err != nil {
		return nil, err
	}
	result.Accepts = mission.Accepts(run.State)

	h.deps.Logger.Debug("run advanced",
		logger.RunID(run.ID),
		logger.String("action", string(cmd.Action)),
		logger.String("state", string(run.State)),
	)
	return result, nil
}

func (h *AdvanceMissionHandler) apply(run *mission.Run, m *mission.Mission, cmd AdvanceMissionCommand, result *AdvanceMissionResult) error {
	now := h.deps.Clock.Now()
	personality := h.deps.Catalog.Coach(run.CoachID).Personality

	switch cmd.Action {
	case ActionBegin:
		return run.Begin(now)
	case ActionBack:
		return run.Back(now)
	case ActionSelect:
		return run.Select(m, cmd.OptionID, now)
	case ActionConfirm:
		return run.Confirm(now)
	case ActionSubmitThesis:
		if !h.deps.Flags.IsEnabled(FlagThesisBonus, run.Identity) {
			if err := run.SkipThesis(m, personality, h.deps.Rand, now); err != nil {
				return err
			}
			run.Thesis = cmd.Thesis
			return nil
		}
		return run.SubmitThesis(m, cmd.Thesis, personality, h.deps.Rand, now)
	case ActionSkipThesis:
		return run.SkipThesis(m, personality, h.deps.Rand, now)
	case ActionContinue:
		return run.Continue(now)
	case ActionAnswer:
		correct, err := run.Answer(m, cmd.Question, cmd.Choice, now)
		if err != nil {
			return err
		}
		result.Correct = &correct
		return nil
	default:
		return shared.WrapError("mission", "Advance", shared.ErrInvalidInput,
			fmt.Sprintf("unknown action %q", cmd.Action), nil)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ABANDON MISSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AbandonMissionCommand discards a run.
type AbandonMissionCommand struct {
	Email     string
	SessionID string
	RunID     string
}

// AbandonMissionHandler handles AbandonMissionCommand.
type AbandonMissionHandler struct {
	deps MissionDeps
}

// NewAbandonMissionHandler creates a new AbandonMissionHandler.
func NewAbandonMissionHandler(deps MissionDeps) *AbandonMissionHandler {
	return &AbandonMissionHandler{deps: deps.withDefaults()}
}

// Handle deletes the run. Pending XP is dropped and the profile is untouched.
func (h *AbandonMissionHandler) Handle(ctx context.Context, cmd AbandonMissionCommand) error {
	id, err := profile.NewIdentity(cmd.Email, cmd.SessionID)
	if err != nil {
		return err
	}
	run, _, err := h.deps.loadRun(ctx, id, cmd.RunID)
	if err != nil {
		return err
	}
	if err := h.deps.Runs.Delete(ctx, run.ID); err != nil {
		return err
	}
	h.deps.Logger.Info("mission abandoned",
		logger.RunID(run.ID),
		logger.MissionKey(run.MissionKey),
		logger.XPAmount(run.PendingXP()),
	)
	return nil
}
