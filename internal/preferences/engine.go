package preferences

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/users"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const (
	suggestionWindow    = 50
	maxSuggestions      = 5
	adjustInterests     = 4
	minAdjustHistory    = 10
	sentimentWindow     = 30 * 24 * time.Hour
	minSentimentSamples = 5
	dominantShare       = 0.4
)

// ErrUserNotFound is returned when adjusting a user that does not exist
var ErrUserNotFound = users.ErrUserNotFound

// DefaultSuggestions are offered to users without reading history
var DefaultSuggestions = []string{"technology", "business"}

// Store is the storage the engine and service work against
type Store interface {
	users.PreferenceStore
	users.HistoryStore
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// AdjustResult describes the outcome of AutoAdjust
type AdjustResult struct {
	Previous        *models.Preferences `json:"previous,omitempty"`
	Reason          string              `json:"reason"`
	SentimentFilter string              `json:"sentiment_filter,omitempty"`
	Interests       []string            `json:"interests,omitempty"`
	HistorySize     int                 `json:"history_size"`
	Adjusted        bool                `json:"adjusted"`
}

// Engine derives preferences from reading history
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates new preference adaptation engine
func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
	}
}

// SuggestInterests returns up to five categories the user reads most among
// their latest 50 reads. Ties go to the category read most recently.
func (e *Engine) SuggestInterests(ctx context.Context, userID int64) ([]string, error) {
	top, err := e.topCategories(ctx, userID, maxSuggestions)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return append([]string(nil), DefaultSuggestions...), nil
	}
	return top, nil
}

func (e *Engine) topCategories(ctx context.Context, userID int64, limit int) ([]string, error) {
	entries, err := e.store.QueryHistory(ctx, userID, time.Time{}, suggestionWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	values := make([]string, 0, len(entries))
	for _, entry := range entries {
		values = append(values, strings.ToLower(strings.TrimSpace(entry.Category)))
	}

	ranked := rankByFrequency(values)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	top := make([]string, 0, len(ranked))
	for _, r := range ranked {
		top = append(top, r.value)
	}
	return top, nil
}

// SuggestSentiment returns the sentiment label making up more than 40% of the
// user's reads in the last 30 days, or "all" when there are fewer than five
// such reads or no label dominates.
func (e *Engine) SuggestSentiment(ctx context.Context, userID int64) (string, error) {
	since := e.now().Add(-sentimentWindow)

	entries, err := e.store.QueryHistory(ctx, userID, since, 0)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	if len(entries) < minSentimentSamples {
		return models.FilterAll, nil
	}

	values := make([]string, 0, len(entries))
	for _, entry := range entries {
		values = append(values, strings.ToLower(strings.TrimSpace(entry.Sentiment)))
	}

	ranked := rankByFrequency(values)
	if len(ranked) == 0 {
		return models.FilterAll, nil
	}

	dominant := ranked[0]
	if float64(dominant.count)/float64(len(entries)) <= dominantShare {
		return models.FilterAll, nil
	}
	if dominant.value == models.FilterAll || !models.IsSentimentFilter(dominant.value) {
		return models.FilterAll, nil
	}

	return dominant.value, nil
}

// AutoAdjust rewrites the user's stored preferences from reading history once
// at least ten reads exist. Interests are REPLACED by the top four suggested
// categories (kept as-is when history has no categories) and the sentiment
// filter is overwritten. Concurrent saves are last-writer-wins.
func (e *Engine) AutoAdjust(ctx context.Context, userID int64) (AdjustResult, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return AdjustResult{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return AdjustResult{}, ErrUserNotFound
	}

	count, err := e.store.CountHistory(ctx, userID, time.Time{})
	if err != nil {
		return AdjustResult{}, fmt.Errorf("failed to count history: %w", err)
	}

	if count < minAdjustHistory {
		return AdjustResult{
			HistorySize: count,
			Reason:      fmt.Sprintf("not enough reading history (%d of %d reads)", count, minAdjustHistory),
		}, nil
	}

	interests, err := e.topCategories(ctx, userID, adjustInterests)
	if err != nil {
		return AdjustResult{}, err
	}

	sentiment, err := e.SuggestSentiment(ctx, userID)
	if err != nil {
		return AdjustResult{}, err
	}

	current, err := e.store.GetPreferences(ctx, userID)
	if err != nil {
		return AdjustResult{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	updated := *models.DefaultPreferences()
	if current != nil {
		updated = *current
		updated.Interests = append([]string(nil), current.Interests...)
	}
	if len(interests) > 0 {
		updated.Interests = interests
	}
	updated.SentimentFilter = sentiment

	if err := e.store.SavePreferences(ctx, userID, updated); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return AdjustResult{}, ErrUserNotFound
		}
		return AdjustResult{}, fmt.Errorf("failed to save preferences: %w", err)
	}

	logger.Info("preferences auto-adjusted",
		zap.Int64("user_id", userID),
		zap.Strings("interests", updated.Interests),
		zap.String("sentiment_filter", updated.SentimentFilter),
		zap.Int("history_size", count),
	)

	return AdjustResult{
		Adjusted:        true,
		HistorySize:     count,
		Interests:       updated.Interests,
		SentimentFilter: updated.SentimentFilter,
		Previous:        current,
		Reason:          fmt.Sprintf("adjusted from %d reads", count),
	}, nil
}

type ranked struct {
	value  string
	count  int
	recent int // index of the most recent occurrence, lower is newer
}

// rankByFrequency orders distinct non-empty values by count, then by how
// recently they occurred. values must be most recent first.
func rankByFrequency(values []string) []ranked {
	index := make(map[string]int)
	var out []ranked

	for i, v := range values {
		if v == "" {
			continue
		}
		if pos, ok := index[v]; ok {
			out[pos].count++
			continue
		}
		index[v] = len(out)
		out = append(out, ranked{value: v, count: 1, recent: i})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].recent < out[j].recent
	})

	return out
}
