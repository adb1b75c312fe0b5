package mission

import (
	"fmt"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// State of a mission run.
type State string

const (
	StateIntro     State = "intro"
	StateDecision  State = "decision"
	StateThesis    State = "thesis"
	StateResult    State = "result"
	StateWhatIf    State = "whatif"
	StateQuiz      State = "quiz"
	StateCompleted State = "completed"
)

// Event drives a run from one state to the next.
type Event string

const (
	EventBegin        Event = "begin"
	EventBack         Event = "back"
	EventConfirm      Event = "confirm"
	EventSubmitThesis Event = "submit_thesis"
	EventSkipThesis   Event = "skip_thesis"
	EventContinue     Event = "continue"
	EventFinishQuiz   Event = "finish_quiz"
)

// transitions is the complete table. Anything missing is rejected.
var transitions = map[State]map[Event]State{
	StateIntro: {
		EventBegin: StateDecision,
	},
	StateDecision: {
		EventBack:    StateIntro,
		EventConfirm: StateThesis,
	},
	StateThesis: {
		EventSubmitThesis: StateResult,
		EventSkipThesis:   StateResult,
	},
	StateResult: {
		EventContinue: StateWhatIf,
	},
	StateWhatIf: {
		EventContinue: StateQuiz,
	},
	StateQuiz: {
		EventFinishQuiz: StateCompleted,
	},
}

// Transition returns the state reached by firing ev in s.
func Transition(s State, ev Event) (State, error) {
	if next, ok := transitions[s][ev]; ok {
		return next, nil
	}
	return s, shared.WrapError("mission", "Transition", shared.ErrInvalidTransition,
		fmt.Sprintf("%s does not accept %s", s, ev), nil)
}

// Accepts lists the events valid in s.
func Accepts(s State) []Event {
	var out []Event
	for _, ev := range []Event{EventBegin, EventBack, EventConfirm, EventSubmitThesis, EventSkipThesis, EventContinue, EventFinishQuiz} {
		if _, ok := transitions[s][ev]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// IsTerminal reports whether s ends the run.
func (s State) IsTerminal() bool {
	return s == StateCompleted
}
