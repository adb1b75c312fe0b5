package config

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with gradual rollout.
// Players are bucketed by identity so a rollout is stable per player.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// overrides pin a flag for one identity key, for support and testing.
	overrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is 0-100. Identities are assigned by hash.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	FeatureBadges         = "badges"          // award and show badges
	FeatureRandomMissions = "random_missions" // generated scenarios
	FeatureMarketingSync  = "marketing_sync"  // push signups to the webhook
	FeatureLeagueRewards  = "league_rewards"  // placement XP at rollover
	FeatureThesisBonus    = "thesis_bonus"    // thesis step and its XP
)

// LoadFeatureFlags loads feature flags from FEATURE_* environment variables.
func LoadFeatureFlags() *FeatureFlags {
	return loadFeatureFlags(lookupEnv)
}

func loadFeatureFlags(lookup func(string) (string, bool)) *FeatureFlags {
	ff := NewFeatureFlags()
	ff.loadFromEnvironment(lookup)
	return ff
}

// NewFeatureFlags returns the defaults without reading the environment.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:  make(map[string]*Feature),
		overrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{Name: FeatureBadges, Description: "Award milestone badges", Enabled: true, RolloutPercent: 100},
		{Name: FeatureRandomMissions, Description: "Generated random mission scenarios", Enabled: true, RolloutPercent: 100},
		{Name: FeatureMarketingSync, Description: "Push new signups to the marketing webhook", Enabled: true, RolloutPercent: 100},
		{Name: FeatureLeagueRewards, Description: "Credit placement XP at league rollover", Enabled: true, RolloutPercent: 100},
		{Name: FeatureThesisBonus, Description: "Investment thesis step and bonus XP", Enabled: true, RolloutPercent: 100},
	}
	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment applies overrides.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_RANDOM_MISSIONS=false
// Example: FEATURE_THESIS_BONUS=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment(lookup func(string) (string, bool)) {
	for name, feature := range ff.features {
		val, ok := lookup(featureNameToEnvKey(name))
		if !ok || val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "random_missions" -> "FEATURE_RANDOM_MISSIONS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the identity key. An empty
// identity only sees fully rolled out features.
func (ff *FeatureFlags) IsEnabled(featureName, identity string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if identity != "" {
		if pinned, ok := ff.overrides[identity][featureName]; ok {
			return pinned
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent >= 100 {
		return true
	}
	if identity == "" {
		return false
	}
	return inRollout(identity, featureName, feature.RolloutPercent)
}

// inRollout uses consistent hashing so identities stay in their bucket.
func inRollout(identity, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(identity))
	return int(h.Sum32()%100) < percent
}

// SetOverride pins a feature for one identity.
func (ff *FeatureFlags) SetOverride(identity, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.overrides[identity]; !ok {
		ff.overrides[identity] = make(map[string]bool)
	}
	ff.overrides[identity][featureName] = enabled
}

// ClearOverrides removes all overrides for an identity.
func (ff *FeatureFlags) ClearOverrides(identity string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.overrides, identity)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// All returns copies of every feature, sorted by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
