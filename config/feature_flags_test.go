package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/application/command"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFeatureNamesMatchCommandFlags(t *testing.T) {
	assert.Equal(t, command.FlagBadges, FeatureBadges)
	assert.Equal(t, command.FlagRandomMissions, FeatureRandomMissions)
	assert.Equal(t, command.FlagMarketingSync, FeatureMarketingSync)
	assert.Equal(t, command.FlagLeagueRewards, FeatureLeagueRewards)
	assert.Equal(t, command.FlagThesisBonus, FeatureThesisBonus)

	var _ command.FeatureFlags = NewFeatureFlags()
}

func TestFeatureFlags_DefaultsAllEnabled(t *testing.T) {
	ff := NewFeatureFlags()
	for _, f := range ff.All() {
		assert.True(t, ff.IsEnabled(f.Name, ""), f.Name)
	}
	assert.Len(t, ff.All(), 5)
	assert.False(t, ff.IsEnabled("unknown", "email:a"))
}

func TestFeatureFlags_Environment(t *testing.T) {
	ff := loadFeatureFlags(lookupFrom(map[string]string{
		"FEATURE_BADGES":          "false",
		"FEATURE_RANDOM_MISSIONS": "0",
		"FEATURE_MARKETING_SYNC":  "nonsense",
	}))
	assert.False(t, ff.IsEnabled(FeatureBadges, "email:a"))
	assert.False(t, ff.IsEnabled(FeatureRandomMissions, "email:a"))
	assert.True(t, ff.IsEnabled(FeatureMarketingSync, "email:a"))
}

func TestFeatureFlags_PartialRolloutIsStable(t *testing.T) {
	ff := loadFeatureFlags(lookupFrom(map[string]string{"FEATURE_THESIS_BONUS": "50"}))

	assert.False(t, ff.IsEnabled(FeatureThesisBonus, ""))

	enabled := 0
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("session:%d", i)
		first := ff.IsEnabled(FeatureThesisBonus, id)
		assert.Equal(t, first, ff.IsEnabled(FeatureThesisBonus, id))
		if first {
			enabled++
		}
	}
	assert.Greater(t, enabled, 50)
	assert.Less(t, enabled, 150)
}

func TestFeatureFlags_Overrides(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureLeagueRewards))

	ff.SetOverride("email:vip", FeatureLeagueRewards, true)
	assert.True(t, ff.IsEnabled(FeatureLeagueRewards, "email:vip"))
	assert.False(t, ff.IsEnabled(FeatureLeagueRewards, "email:other"))

	ff.ClearOverrides("email:vip")
	assert.False(t, ff.IsEnabled(FeatureLeagueRewards, "email:vip"))
}

func TestFeatureFlags_SetRolloutPercent(t *testing.T) {
	ff := NewFeatureFlags()
	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureBadges, 101), ErrInvalidRolloutPercent)

	require.NoError(t, ff.EnableFeature(FeatureBadges))
	assert.True(t, ff.IsEnabled(FeatureBadges, "session:x"))
}
