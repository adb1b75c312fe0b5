// Package profile owns the authoritative player profile: identity, XP
// ledger, streak, completed missions, badges and league tier.
package profile

import (
	"slices"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/streak"
)

// Profile is the persisted player record. Level is always derived from XP.
type Profile struct {
	Key                     string          `json:"key"`
	Email                   string          `json:"email,omitempty"`
	SessionID               string          `json:"session_id,omitempty"`
	XP                      progress.Ledger `json:"xp"`
	Streak                  streak.State    `json:"streak"`
	CompletedMissions       []string        `json:"completed_missions,omitempty"`
	CreditedRuns            []string        `json:"credited_runs,omitempty"`
	RandomMissionsCompleted int             `json:"random_missions_completed"`
	Badges                  []BadgeID       `json:"badges,omitempty"`
	Stats                   mission.Stats   `json:"stats"`
	LeagueTier              league.Tier     `json:"league_tier"`
	Source                  string          `json:"source,omitempty"`
	Version                 int64           `json:"version"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// New creates an empty profile for id.
func New(id Identity, now time.Time) *Profile {
	return &Profile{
		Key:        id.Key(),
		Email:      id.Email,
		SessionID:  id.SessionID,
		LeagueTier: league.Bronze,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
}

// Identity returns the profile's identity.
func (p *Profile) Identity() Identity {
	return Identity{Email: p.Email, SessionID: p.SessionID}
}

// Level is derived from total XP.
func (p *Profile) Level() int64 {
	return p.XP.Level()
}

// HasCompleted reports whether the scripted mission key was completed.
func (p *Profile) HasCompleted(key string) bool {
	_, found := slices.BinarySearch(p.CompletedMissions, key)
	return found
}

// MarkCompleted adds key to the completed set and reports whether it was new.
func (p *Profile) MarkCompleted(key string) bool {
	i, found := slices.BinarySearch(p.CompletedMissions, key)
	if found {
		return false
	}
	p.CompletedMissions = slices.Insert(p.CompletedMissions, i, key)
	return true
}

// CreditedRunLimit bounds the run ids remembered by RecordRun. It only has
// to cover runs still alive in the run store.
const CreditedRunLimit = 32

// HasCreditedRun reports whether the completion of run id was already
// credited to this profile.
func (p *Profile) HasCreditedRun(id string) bool {
	return slices.Contains(p.CreditedRuns, id)
}

// RecordRun remembers that run id was credited, forgetting the oldest ids
// beyond CreditedRunLimit.
func (p *Profile) RecordRun(id string) {
	if p.HasCreditedRun(id) {
		return
	}
	p.CreditedRuns = append(p.CreditedRuns, id)
	if over := len(p.CreditedRuns) - CreditedRunLimit; over > 0 {
		p.CreditedRuns = append([]string(nil), p.CreditedRuns[over:]...)
	}
}

// CompletedSet returns the completed missions as a lookup set.
func (p *Profile) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(p.CompletedMissions))
	for _, k := range p.CompletedMissions {
		set[k] = true
	}
	return set
}

// MissionsCompleted counts scripted and random completions.
func (p *Profile) MissionsCompleted() int {
	return len(p.CompletedMissions) + p.RandomMissionsCompleted
}

// HasBadge reports whether the badge was earned.
func (p *Profile) HasBadge(id BadgeID) bool {
	return slices.Contains(p.Badges, id)
}

// Touch records a modification.
func (p *Profile) Touch(now time.Time) {
	p.UpdatedAt = now.UTC()
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.XP.Recent = slices.Clone(p.XP.Recent)
	if p.Streak.LastActiveAt != nil {
		t := *p.Streak.LastActiveAt
		c.Streak.LastActiveAt = &t
	}
	c.CompletedMissions = slices.Clone(p.CompletedMissions)
	c.CreditedRuns = slices.Clone(p.CreditedRuns)
	c.Badges = slices.Clone(p.Badges)
	c.Stats.AssetClasses = slices.Clone(p.Stats.AssetClasses)
	c.Stats.RiskLevels = slices.Clone(p.Stats.RiskLevels)
	c.Stats.Coaches = slices.Clone(p.Stats.Coaches)
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// MERGE
// ══════════════════════════════════════════════════════════════════════════════

// Merge folds incoming into target: current streak, longest streak and total
// XP each take the larger value. Every other field keeps target's value.
func Merge(target, incoming *Profile) {
	target.Streak.Current = max(target.Streak.Current, incoming.Streak.Current)
	target.Streak.Longest = max(target.Streak.Longest, incoming.Streak.Longest, target.Streak.Current)
	target.XP.RaiseTotal(incoming.XP.Total)
}

// Snapshot is the client-cached progress pushed by a sync.
type Snapshot struct {
	Streak            int
	TotalXP           int64
	CompletedMissions []string
}

// ApplySnapshot merges a client snapshot: streak and total XP by maximum,
// completed missions by union. A client cannot lower server state.
func (p *Profile) ApplySnapshot(s Snapshot) {
	incoming := &Profile{}
	incoming.Streak.Current = max(s.Streak, 0)
	incoming.XP.Total = max(s.TotalXP, 0)
	Merge(p, incoming)
	for _, key := range s.CompletedMissions {
		if key != "" {
			p.MarkCompleted(key)
		}
	}
}
