package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	// Progress events
	EventXPCredited  EventType = "progress.xp_credited"
	EventLevelUp     EventType = "progress.level_up"
	EventBadgeEarned EventType = "progress.badge_earned"

	// Streak events
	EventStreakClaimed EventType = "streak.claimed"

	// Profile events
	EventProfileSignedUp EventType = "profile.signed_up"
	EventProfileSynced   EventType = "profile.synced"

	// Mission events
	EventMissionCompleted EventType = "mission.completed"

	// League events
	EventSeasonRolledOver EventType = "league.season_rolled_over"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is the canonical identity key of the player, or the
	// season/tier key for league events.
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent creates a new base event stamped at the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at.UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPCreditedEvent is emitted for every successful ledger credit. League
// standings consume it to keep weekly tallies.
type XPCreditedEvent struct {
	BaseEvent
	Amount    int64  `json:"amount"`
	Source    string `json:"source"`
	NewTotal  int64  `json:"new_total"`
	Level     int64  `json:"level"`
	LeveledUp bool   `json:"leveled_up"`
	Tier      string `json:"tier"`
}

func (e XPCreditedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":     e.Amount,
		"source":     e.Source,
		"new_total":  e.NewTotal,
		"level":      e.Level,
		"leveled_up": e.LeveledUp,
		"tier":       e.Tier,
	}
}

func NewXPCreditedEvent(identity string, amount int64, source string, newTotal, level int64, leveledUp bool, tier string, at time.Time) XPCreditedEvent {
	return XPCreditedEvent{
		BaseEvent: NewBaseEvent(EventXPCredited, identity, at),
		Amount:    amount,
		Source:    source,
		NewTotal:  newTotal,
		Level:     level,
		LeveledUp: leveledUp,
		Tier:      tier,
	}
}

// LevelUpEvent is emitted when a credit crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int64 `json:"old_level"`
	NewLevel int64 `json:"new_level"`
}

func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

func NewLevelUpEvent(identity string, oldLevel, newLevel int64, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, identity, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// BadgeEarnedEvent is emitted once per newly earned badge.
type BadgeEarnedEvent struct {
	BaseEvent
	BadgeID string `json:"badge_id"`
}

func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"badge_id": e.BadgeID}
}

func NewBadgeEarnedEvent(identity, badgeID string, at time.Time) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: NewBaseEvent(EventBadgeEarned, identity, at),
		BadgeID:   badgeID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak / Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakClaimedEvent is emitted for a successful (non-idempotent) claim.
type StreakClaimedEvent struct {
	BaseEvent
	Streak      int   `json:"streak"`
	XPEarned    int64 `json:"xp_earned"`
	BonusEarned bool  `json:"bonus_earned"`
}

func (e StreakClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"streak":       e.Streak,
		"xp_earned":    e.XPEarned,
		"bonus_earned": e.BonusEarned,
	}
}

func NewStreakClaimedEvent(identity string, streak int, xpEarned int64, bonus bool, at time.Time) StreakClaimedEvent {
	return StreakClaimedEvent{
		BaseEvent:   NewBaseEvent(EventStreakClaimed, identity, at),
		Streak:      streak,
		XPEarned:    xpEarned,
		BonusEarned: bonus,
	}
}

// ProfileSignedUpEvent is emitted after an email identity is attached.
// Fingerprint is the hashed identity; the raw email is only carried for the
// contact sync and never logged.
type ProfileSignedUpEvent struct {
	BaseEvent
	Email       string `json:"email"`
	Fingerprint string `json:"fingerprint"`
	Streak      int    `json:"streak"`
	TotalXP     int64  `json:"total_xp"`
	Level       int64  `json:"level"`
	IsExisting  bool   `json:"is_existing"`
	Source      string `json:"source"`
}

func (e ProfileSignedUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"fingerprint": e.Fingerprint,
		"streak":      e.Streak,
		"total_xp":    e.TotalXP,
		"level":       e.Level,
		"is_existing": e.IsExisting,
		"source":      e.Source,
	}
}

func NewProfileSignedUpEvent(identity, email, fingerprint string, streak int, totalXP, level int64, existing bool, source string, at time.Time) ProfileSignedUpEvent {
	return ProfileSignedUpEvent{
		BaseEvent:   NewBaseEvent(EventProfileSignedUp, identity, at),
		Email:       email,
		Fingerprint: fingerprint,
		Streak:      streak,
		TotalXP:     totalXP,
		Level:       level,
		IsExisting:  existing,
		Source:      source,
	}
}

// ProfileSyncedEvent is emitted after a client cache push was merged.
type ProfileSyncedEvent struct {
	BaseEvent
	TotalXP           int64 `json:"total_xp"`
	Streak            int   `json:"streak"`
	CompletedMissions int   `json:"completed_missions"`
}

func (e ProfileSyncedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"total_xp":           e.TotalXP,
		"streak":             e.Streak,
		"completed_missions": e.CompletedMissions,
	}
}

func NewProfileSyncedEvent(identity string, totalXP int64, streak, completed int, at time.Time) ProfileSyncedEvent {
	return ProfileSyncedEvent{
		BaseEvent:         NewBaseEvent(EventProfileSynced, identity, at),
		TotalXP:           totalXP,
		Streak:            streak,
		CompletedMissions: completed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mission / League Events
// ═══════════════════════════════════════════════════════════════════════════

// MissionCompletedEvent is emitted after completion XP has been credited.
type MissionCompletedEvent struct {
	BaseEvent
	MissionKey     string   `json:"mission_key"`
	Kind           string   `json:"kind"`
	XPEarned       int64    `json:"xp_earned"`
	Performance    string   `json:"performance"`
	AdjustedReturn float64  `json:"adjusted_return"`
	NewlyUnlocked  []string `json:"newly_unlocked,omitempty"`
}

func (e MissionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mission_key":     e.MissionKey,
		"kind":            e.Kind,
		"xp_earned":       e.XPEarned,
		"performance":     e.Performance,
		"adjusted_return": e.AdjustedReturn,
		"newly_unlocked":  e.NewlyUnlocked,
	}
}

func NewMissionCompletedEvent(identity, missionKey, kind string, xp int64, performance string, adjusted float64, unlocked []string, at time.Time) MissionCompletedEvent {
	return MissionCompletedEvent{
		BaseEvent:      NewBaseEvent(EventMissionCompleted, identity, at),
		MissionKey:     missionKey,
		Kind:           kind,
		XPEarned:       xp,
		Performance:    performance,
		AdjustedReturn: adjusted,
		NewlyUnlocked:  unlocked,
	}
}

// SeasonRolledOverEvent is emitted once per cohort rollover.
type SeasonRolledOverEvent struct {
	BaseEvent
	Season    string   `json:"season"`
	Tier      string   `json:"tier"`
	Promoted  []string `json:"promoted"`
	Relegated []string `json:"relegated"`
	Rewarded  int      `json:"rewarded"`
}

func (e SeasonRolledOverEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"season":    e.Season,
		"tier":      e.Tier,
		"promoted":  len(e.Promoted),
		"relegated": len(e.Relegated),
		"rewarded":  e.Rewarded,
	}
}

func NewSeasonRolledOverEvent(season, tier string, promoted, relegated []string, rewarded int, at time.Time) SeasonRolledOverEvent {
	return SeasonRolledOverEvent{
		BaseEvent: NewBaseEvent(EventSeasonRolledOver, season+":"+tier, at),
		Season:    season,
		Tier:      tier,
		Promoted:  promoted,
		Relegated: relegated,
		Rewarded:  rewarded,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event. Useful when no bus is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
