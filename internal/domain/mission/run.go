package mission

import (
	"fmt"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// Run is one player's transient pass through a mission. It lives only in
// the run store until it is completed or abandoned.
type Run struct {
	ID               string      `json:"id"`
	MissionKey       string      `json:"mission_key"`
	Kind             Kind        `json:"kind"`
	Identity         string      `json:"identity"`
	CoachID          string      `json:"coach_id"`
	State            State       `json:"state"`
	SelectedOptionID string      `json:"selected_option_id,omitempty"`
	Thesis           string      `json:"thesis,omitempty"`
	ThesisBonus      int64       `json:"thesis_bonus,omitempty"`
	Outcome          *Outcome    `json:"outcome,omitempty"`
	QuizAnswers      map[int]int `json:"quiz_answers,omitempty"`
	Pending          []Award     `json:"pending,omitempty"`
	Generated        *Mission    `json:"generated,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewRun starts a run of m in the intro state. Generated missions are kept
// on the run because they are not part of the catalog.
func NewRun(id string, m *Mission, identity, coachID string, now time.Time) *Run {
	r := &Run{
		ID:         id,
		MissionKey: m.Key,
		Kind:       m.Kind,
		Identity:   identity,
		CoachID:    coachID,
		State:      StateIntro,
		StartedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	if m.Kind == KindRandom {
		r.Generated = m
	}
	return r
}

func (r *Run) fire(ev Event, now time.Time) error {
	next, err := Transition(r.State, ev)
	if err != nil {
		return err
	}
	r.State = next
	r.UpdatedAt = now.UTC()
	return nil
}

// CheckOwner rejects access by any identity other than the one that started the run.
func (r *Run) CheckOwner(identity string) error {
	if r.Identity != identity {
		return shared.WrapError("mission", "CheckOwner", shared.ErrRunNotOwned,
			fmt.Sprintf("run %s", r.ID), nil)
	}
	return nil
}

// Begin moves from the intro to the decision step.
func (r *Run) Begin(now time.Time) error {
	return r.fire(EventBegin, now)
}

// Back returns from the decision step to the intro.
func (r *Run) Back(now time.Time) error {
	return r.fire(EventBack, now)
}

// Select picks an option. Only valid during the decision step; the player
// may change their mind until Confirm.
func (r *Run) Select(m *Mission, optionID string, now time.Time) error {
	if r.State != StateDecision {
		return shared.WrapError("mission", "Select", shared.ErrInvalidTransition,
			fmt.Sprintf("cannot select an option in %s", r.State), nil)
	}
	if _, err := m.Option(optionID); err != nil {
		return err
	}
	r.SelectedOptionID = optionID
	r.UpdatedAt = now.UTC()
	return nil
}

// Confirm locks in the selected option.
func (r *Run) Confirm(now time.Time) error {
	if r.State == StateDecision && r.SelectedOptionID == "" {
		return shared.ErrNoOptionSelected
	}
	return r.fire(EventConfirm, now)
}

// SubmitThesis scores text, records the bonus as pending XP and resolves
// the outcome.
func (r *Run) SubmitThesis(m *Mission, text string, p Personality, rng RandomSource, now time.Time) error {
	if _, err := Transition(r.State, EventSubmitThesis); err != nil {
		return err
	}
	bonus, err := ThesisBonus(text)
	if err != nil {
		return err
	}
	if err := r.resolve(m, p, rng); err != nil {
		return err
	}
	r.Thesis = text
	r.ThesisBonus = bonus
	r.Pending = append(r.Pending, Award{progress.SourceThesisWritten, bonus})
	return r.fire(EventSubmitThesis, now)
}

// SkipThesis resolves the outcome without a thesis bonus.
func (r *Run) SkipThesis(m *Mission, p Personality, rng RandomSource, now time.Time) error {
	if _, err := Transition(r.State, EventSkipThesis); err != nil {
		return err
	}
	if err := r.resolve(m, p, rng); err != nil {
		return err
	}
	return r.fire(EventSkipThesis, now)
}

func (r *Run) resolve(m *Mission, p Personality, rng RandomSource) error {
	opt, err := m.Option(r.SelectedOptionID)
	if err != nil {
		return err
	}
	outcome := Resolve(opt, p, rng)
	r.Outcome = &outcome
	return nil
}

// Continue advances result → what-if → quiz.
func (r *Run) Continue(now time.Time) error {
	return r.fire(EventContinue, now)
}

// Answer records a quiz answer. Each question can be answered once; a
// correct answer adds quiz XP to the pending awards.
func (r *Run) Answer(m *Mission, question, choice int, now time.Time) (bool, error) {
	if r.State != StateQuiz {
		return false, shared.WrapError("mission", "Answer", shared.ErrInvalidTransition,
			fmt.Sprintf("cannot answer in %s", r.State), nil)
	}
	if question < 0 || question >= len(m.Quiz) {
		return false, shared.ErrQuestionNotFound
	}
	if _, done := r.QuizAnswers[question]; done {
		return false, shared.ErrAlreadyAnswered
	}
	if r.QuizAnswers == nil {
		r.QuizAnswers = make(map[int]int)
	}
	r.QuizAnswers[question] = choice
	r.UpdatedAt = now.UTC()

	correct := m.Quiz[question].Answer == choice
	if correct {
		r.Pending = append(r.Pending, Award{progress.SourceQuizCorrect, progress.RewardQuizCorrect})
	}
	return correct, nil
}

// CorrectAnswers counts correct quiz answers.
func (r *Run) CorrectAnswers(m *Mission) int {
	n := 0
	for q, choice := range r.QuizAnswers {
		if q < len(m.Quiz) && m.Quiz[q].Answer == choice {
			n++
		}
	}
	return n
}

// PerfectQuiz reports whether every question was answered correctly.
func (r *Run) PerfectQuiz(m *Mission) bool {
	return len(m.Quiz) > 0 && r.CorrectAnswers(m) == len(m.Quiz)
}

// FinishQuiz closes the quiz, adding the perfect-score bonus when earned.
func (r *Run) FinishQuiz(m *Mission, now time.Time) error {
	if err := r.fire(EventFinishQuiz, now); err != nil {
		return err
	}
	if r.PerfectQuiz(m) {
		r.Pending = append(r.Pending, Award{progress.SourceQuizPerfect, progress.RewardQuizPerfect})
	}
	return nil
}

// PendingXP is the XP that completion will credit from thesis and quiz.
func (r *Run) PendingXP() int64 {
	return SumAwards(r.Pending)
}

// CompletionAwards lists the fixed completion rewards followed by the
// pending thesis and quiz awards. The first-time bonus applies to scripted
// missions only.
func (r *Run) CompletionAwards(firstTime bool) []Award {
	awards := []Award{{progress.SourceMissionComplete, progress.RewardMissionComplete}}
	if firstTime && r.Kind == KindScripted {
		awards = append(awards, Award{progress.SourceMissionFirstTime, progress.RewardMissionFirstTime})
	}
	return append(awards, r.Pending...)
}
