package mission

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// MinThesisLength is the shortest accepted thesis, in characters.
const MinThesisLength = 10

var (
	riskVocabulary      = regexp.MustCompile(`(?i)risk|safe|volatile|conservative|aggressive|danger|protect`)
	timeframeVocabulary = regexp.MustCompile(`(?i)long.?term|short.?term|year|time|hold|wait|future`)
)

// ThesisBonus scores a written thesis. Text shorter than MinThesisLength is
// rejected with ErrThesisTooShort.
func ThesisBonus(text string) (int64, error) {
	text = strings.TrimSpace(text)
	length := utf8.RuneCountInString(text)
	if length < MinThesisLength {
		return 0, shared.ErrThesisTooShort
	}

	bonus := progress.RewardThesisBase
	if length > 20 {
		bonus += 5
	}
	if riskVocabulary.MatchString(text) {
		bonus += 10
	}
	if timeframeVocabulary.MatchString(text) {
		bonus += 5
	}
	if length > 60 && len(strings.Fields(text)) > 10 {
		bonus += 15
	}
	return bonus, nil
}
