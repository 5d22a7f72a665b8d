package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/classify"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const DefaultHistoryLimit = 100

// ErrInvalidArticle is returned when a read event has no article URL
var ErrInvalidArticle = errors.New("article url is required")

// EventSink receives every newly recorded read
type EventSink interface {
	Record(event models.ReadEvent)
}

// Service records reading activity and manages stored preferences
type Service struct {
	store Store
	sink  EventSink
	now   func() time.Time
	locks sync.Map // user id -> *sync.Mutex
}

// NewService creates new reading service. sink may be nil.
func NewService(store Store, sink EventSink) *Service {
	return &Service{
		store: store,
		sink:  sink,
		now:   time.Now,
	}
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// TrackRead appends the article to the user's reading history. The category is
// derived from title and description. Reading the same URL again is a no-op
// and reports false.
func (s *Service) TrackRead(ctx context.Context, userID int64, article models.Article) (bool, error) {
	url := strings.TrimSpace(article.URL)
	if url == "" {
		return false, ErrInvalidArticle
	}

	sentiment := strings.ToLower(strings.TrimSpace(article.Sentiment))
	if sentiment == "" {
		sentiment = models.SentimentNeutral
	}

	entry := models.ReadingEntry{
		UserID:       userID,
		ArticleTitle: article.Title,
		ArticleURL:   url,
		Category:     classify.Classify(article.AnalysisText()),
		Sentiment:    sentiment,
		ReadAt:       s.now().UTC(),
	}

	mu := s.userLock(userID)
	mu.Lock()
	inserted, err := s.store.AppendRead(ctx, entry)
	mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("failed to track read: %w", err)
	}

	if !inserted {
		logger.Debug("article already read",
			zap.Int64("user_id", userID),
			zap.String("url", url),
		)
		return false, nil
	}

	if s.sink != nil {
		s.sink.Record(models.ReadEvent{
			UserID:     userID,
			ArticleURL: url,
			Category:   entry.Category,
			Sentiment:  entry.Sentiment,
			Source:     article.Source,
			ReadAt:     entry.ReadAt,
		})
	}

	logger.Debug("read tracked",
		zap.Int64("user_id", userID),
		zap.String("url", url),
		zap.String("category", entry.Category),
	)

	return true, nil
}

// Stats counts reads today (UTC calendar date), in the last seven days and
// in total
func (s *Service) Stats(ctx context.Context, userID int64) (models.ReadingStats, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	today, err := s.store.CountHistory(ctx, userID, startOfDay)
	if err != nil {
		return models.ReadingStats{}, fmt.Errorf("failed to count today's reads: %w", err)
	}

	week, err := s.store.CountHistory(ctx, userID, now.Add(-7*24*time.Hour))
	if err != nil {
		return models.ReadingStats{}, fmt.Errorf("failed to count week's reads: %w", err)
	}

	total, err := s.store.CountHistory(ctx, userID, time.Time{})
	if err != nil {
		return models.ReadingStats{}, fmt.Errorf("failed to count reads: %w", err)
	}

	return models.ReadingStats{Today: today, Week: week, Total: total}, nil
}

// History returns the latest reads, most recent first
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]models.ReadingEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	entries, err := s.store.QueryHistory(ctx, userID, time.Time{}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if entries == nil {
		entries = []models.ReadingEntry{}
	}

	return entries, nil
}

// Export collects the profile, preferences, stats and full reading history of
// a user, most recent read first
func (s *Service) Export(ctx context.Context, userID int64) (models.DataExport, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.DataExport{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return models.DataExport{}, ErrUserNotFound
	}

	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return models.DataExport{}, err
	}

	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return models.DataExport{}, err
	}

	entries, err := s.store.QueryHistory(ctx, userID, time.Time{}, 0)
	if err != nil {
		return models.DataExport{}, fmt.Errorf("failed to load history: %w", err)
	}
	if entries == nil {
		entries = []models.ReadingEntry{}
	}

	return models.DataExport{
		ExportedAt:     s.now().UTC(),
		User:           *user,
		Preferences:    prefs,
		Stats:          stats,
		ReadingHistory: entries,
	}, nil
}

// ClearHistory deletes every read of the user and returns how many were removed
func (s *Service) ClearHistory(ctx context.Context, userID int64) (int, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	removed, err := s.store.DeleteHistory(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}

	logger.Info("reading history cleared",
		zap.Int64("user_id", userID),
		zap.Int("removed", removed),
	)

	return removed, nil
}

// Preferences returns the stored preferences or the defaults
func (s *Service) Preferences(ctx context.Context, userID int64) (models.Preferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return models.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	if prefs == nil {
		return *models.DefaultPreferences(), nil
	}
	return *prefs, nil
}

// SavePreferences normalizes, validates and stores preferences. Validation
// failures wrap models.ErrInvalidPreferences.
func (s *Service) SavePreferences(ctx context.Context, userID int64, prefs models.Preferences) (models.Preferences, error) {
	prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return models.Preferences{}, err
	}

	if err := s.store.SavePreferences(ctx, userID, prefs); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.Preferences{}, ErrUserNotFound
		}
		return models.Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}

	return *prefs.ForStorage(), nil
}

// UserExists reports whether the user is registered
func (s *Service) UserExists(ctx context.Context, userID int64) (bool, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}
