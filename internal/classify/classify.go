package classify

import "strings"

// General is returned when no category keyword matches
const General = "general"

// Categories in canonical order. Ties are won by the earlier category.
const (
	Technology    = "technology"
	Business      = "business"
	Sports        = "sports"
	Health        = "health"
	Science       = "science"
	Entertainment = "entertainment"
)

// Categories returns all categories in canonical order
func Categories() []string {
	return []string{Technology, Business, Sports, Health, Science, Entertainment}
}

var categoryKeywords = map[string][]string{
	Technology: {
		"tech", "ai", "software", "app", "digital", "computer", "internet",
		"startup", "coding", "programming", "data", "cloud", "cyber",
	},
	Business: {
		"business", "market", "stock", "company", "ceo", "startup",
		"finance", "economy", "trade", "investor", "revenue",
	},
	Sports: {
		"sport", "game", "player", "team", "match", "football", "basketball",
		"soccer", "championship", "tournament", "athlete",
	},
	Health: {
		"health", "medical", "doctor", "hospital", "disease", "vaccine",
		"medicine", "treatment", "patient", "wellness",
	},
	Science: {
		"science", "research", "study", "discovery", "scientist",
		"experiment", "laboratory", "physics", "chemistry", "biology",
	},
	Entertainment: {
		"movie", "music", "celebrity", "entertainment", "film",
		"actor", "singer", "album", "concert", "show",
	},
}

// Classify tags text with the category whose keywords occur most often as
// case-insensitive substrings. Keywords are matched as substrings, so "ai"
// also hits "said"; this matches how articles were tagged historically.
func Classify(text string) string {
	if strings.TrimSpace(text) == "" {
		return General
	}

	lower := strings.ToLower(text)
	best := General
	bestScore := 0

	for _, category := range Categories() {
		score := 0
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}

	return best
}

// IsCategory reports whether name is one of the known categories or General
func IsCategory(name string) bool {
	if name == General {
		return true
	}
	_, ok := categoryKeywords[name]
	return ok
}
