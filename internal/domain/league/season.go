package league

import (
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/timeutil"
)

// Default slot counts.
const (
	DefaultPromotionSlots  = 3
	DefaultRelegationSlots = 5
)

// Season is one weekly competition window [Start, End).
type Season struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Ended reports whether the season is over at now.
func (s Season) Ended(now time.Time) bool {
	return !now.Before(s.End)
}

// Next returns the following season.
func (s Season) Next() Season {
	return seasonStarting(s.End)
}

// Previous returns the preceding season.
func (s Season) Previous() Season {
	loc := s.Start.Location()
	y, m, d := s.Start.Date()
	return seasonStarting(time.Date(y, m, d-7, 0, 0, 0, 0, loc))
}

// SeasonFor returns the season containing now. Seasons start on Monday
// 00:00 in loc and are named by ISO week.
func SeasonFor(now time.Time, loc *time.Location) Season {
	if loc == nil {
		loc = time.UTC
	}
	return seasonStarting(timeutil.StartOfWeek(now, loc))
}

// ParseSeason resolves a season id like "2025-W07" in loc.
func ParseSeason(id string, loc *time.Location) (Season, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := timeutil.ParseWeekID(id, loc)
	if err != nil {
		return Season{}, shared.WrapError("league", "ParseSeason", shared.ErrInvalidSeason, err.Error(), err)
	}
	return seasonStarting(start), nil
}

func seasonStarting(start time.Time) Season {
	y, m, d := start.Date()
	end := time.Date(y, m, d+7, 0, 0, 0, 0, start.Location())
	return Season{
		ID:    timeutil.WeekID(start, start.Location()),
		Start: start,
		End:   end,
	}
}
