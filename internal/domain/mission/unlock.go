package mission

// Unlocked recomputes the unlock flag of every scripted mission. A mission
// is unlocked iff each of its prerequisites is in completed. Missing or
// cyclic prerequisites leave the mission locked.
func Unlocked(missions []*Mission, completed map[string]bool) map[string]bool {
	out := make(map[string]bool, len(missions))
	for _, m := range missions {
		if m.Kind == KindRandom {
			continue
		}
		open := true
		for _, pre := range m.Prerequisites {
			if !completed[pre] {
				open = false
				break
			}
		}
		out[m.Key] = open
	}
	return out
}

// NewlyUnlocked lists keys unlocked in after but not in before, in content order.
func NewlyUnlocked(missions []*Mission, before, after map[string]bool) []string {
	var keys []string
	for _, m := range missions {
		if after[m.Key] && !before[m.Key] {
			keys = append(keys, m.Key)
		}
	}
	return keys
}
