package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentiment filter values
const (
	FilterAll = "all"
)

const (
	DefaultInterest    = "technology"
	DefaultLanguage    = "en"
	DefaultMaxArticles = 12
	MaxArticlesLimit   = 100
)

// ErrInvalidPreferences is returned for malformed preference payloads
var ErrInvalidPreferences = errors.New("invalid preferences")

// Preferences represents user's digest settings
type Preferences struct {
	Interests       []string `json:"interests"`
	SentimentFilter string   `json:"sentimentFilter"`
	Language        string   `json:"language"`
	MaxArticles     int      `json:"maxArticles"`
}

// DefaultPreferences returns preferences for a user who never saved any
func DefaultPreferences() *Preferences {
	return &Preferences{
		Interests:       []string{DefaultInterest},
		SentimentFilter: FilterAll,
		Language:        DefaultLanguage,
		MaxArticles:     DefaultMaxArticles,
	}
}

// IsSentimentFilter reports whether value is an accepted sentiment filter
func IsSentimentFilter(value string) bool {
	switch strings.ToLower(value) {
	case FilterAll, SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Normalize trims and lowercases fields, drops empty and repeated interests,
// and fills unset language/filter with defaults. Interests may end up empty.
func (p *Preferences) Normalize() {
	seen := make(map[string]struct{}, len(p.Interests))
	interests := make([]string, 0, len(p.Interests))
	for _, interest := range p.Interests {
		interest = strings.ToLower(strings.TrimSpace(interest))
		if interest == "" {
			continue
		}
		if _, dup := seen[interest]; dup {
			continue
		}
		seen[interest] = struct{}{}
		interests = append(interests, interest)
	}
	p.Interests = interests

	p.SentimentFilter = strings.ToLower(strings.TrimSpace(p.SentimentFilter))
	if p.SentimentFilter == "" {
		p.SentimentFilter = FilterAll
	}

	p.Language = strings.ToLower(strings.TrimSpace(p.Language))
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
}

// Validate checks a normalized payload
func (p *Preferences) Validate() error {
	if p.MaxArticles < 1 || p.MaxArticles > MaxArticlesLimit {
		return fmt.Errorf("%w: maxArticles must be between 1 and %d, got %d", ErrInvalidPreferences, MaxArticlesLimit, p.MaxArticles)
	}
	if !IsSentimentFilter(p.SentimentFilter) {
		return fmt.Errorf("%w: unknown sentiment filter %q", ErrInvalidPreferences, p.SentimentFilter)
	}
	if len(p.Language) != 2 {
		return fmt.Errorf("%w: language must be a two-letter code, got %q", ErrInvalidPreferences, p.Language)
	}
	return nil
}

// ForStorage returns a copy safe to persist: stored interests are never empty
func (p *Preferences) ForStorage() *Preferences {
	out := *p
	out.Interests = append([]string(nil), p.Interests...)
	if len(out.Interests) == 0 {
		out.Interests = []string{DefaultInterest}
	}
	return &out
}
