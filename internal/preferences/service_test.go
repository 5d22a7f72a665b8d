package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/selivandex/news-digest/internal/users"
	"github.com/selivandex/news-digest/pkg/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.ReadEvent
}

func (s *recordingSink) Record(event models.ReadEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func newTestService(repo *users.MemoryRepository, sink EventSink) *Service {
	service := NewService(repo, sink)
	service.now = func() time.Time { return now }
	return service
}

func TestService_TrackRead(t *testing.T) {
	ctx := context.Background()
	article := models.Article{
		Title:       "Football team wins the final",
		Description: "A late goal decided the match.",
		URL:         "https://example.com/final",
		Source:      "Sports Wire",
	}

	t.Run("duplicate read is stored once", func(t *testing.T) {
		repo, userID := newTestStore(t)
		sink := &recordingSink{}
		service := newTestService(repo, sink)

		recorded, err := service.TrackRead(ctx, userID, article)
		if err != nil || !recorded {
			t.Fatalf("Expected first read recorded, got %v, %v", recorded, err)
		}

		recorded, err = service.TrackRead(ctx, userID, article)
		if err != nil {
			t.Fatalf("Duplicate read should not fail: %v", err)
		}
		if recorded {
			t.Error("Duplicate read should not be recorded")
		}

		history, _ := service.History(ctx, userID, 0)
		if len(history) != 1 {
			t.Fatalf("Expected 1 history entry, got %d", len(history))
		}
		entry := history[0]
		if entry.Category != "sports" {
			t.Errorf("Expected derived category sports, got %s", entry.Category)
		}
		if entry.Sentiment != models.SentimentNeutral {
			t.Errorf("Expected default neutral sentiment, got %s", entry.Sentiment)
		}
		if !entry.ReadAt.Equal(now) {
			t.Errorf("Expected read time %v, got %v", now, entry.ReadAt)
		}

		user, _ := repo.GetUser(ctx, userID)
		if user.ArticlesRead != 1 {
			t.Errorf("Expected counter incremented once, got %d", user.ArticlesRead)
		}

		if len(sink.events) != 1 {
			t.Fatalf("Expected 1 analytics event, got %d", len(sink.events))
		}
		if sink.events[0].Source != "Sports Wire" || sink.events[0].UserID != userID {
			t.Errorf("Unexpected event %+v", sink.events[0])
		}
	})

	t.Run("concurrent duplicates", func(t *testing.T) {
		repo, userID := newTestStore(t)
		service := newTestService(repo, nil)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			recorded int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := service.TrackRead(ctx, userID, article)
				if err != nil {
					t.Errorf("TrackRead failed: %v", err)
					return
				}
				if ok {
					mu.Lock()
					recorded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if recorded != 1 {
			t.Errorf("Expected exactly one recorded read, got %d", recorded)
		}
	})

	t.Run("sentiment label is kept", func(t *testing.T) {
		repo, userID := newTestStore(t)
		service := newTestService(repo, nil)

		positive := article
		positive.Sentiment = "Positive"
		if _, err := service.TrackRead(ctx, userID, positive); err != nil {
			t.Fatal(err)
		}

		history, _ := service.History(ctx, userID, 0)
		if history[0].Sentiment != "positive" {
			t.Errorf("Expected positive, got %s", history[0].Sentiment)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		repo, userID := newTestStore(t)
		service := newTestService(repo, nil)

		if _, err := service.TrackRead(ctx, userID, models.Article{Title: "No link"}); !errors.Is(err, ErrInvalidArticle) {
			t.Errorf("Expected ErrInvalidArticle, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, userID := newTestStore(t)
		service := newTestService(repo, nil)

		if _, err := service.TrackRead(ctx, userID+100, article); !errors.Is(err, users.ErrUserNotFound) {
			t.Errorf("Expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()
	repo, userID := newTestStore(t)
	service := newTestService(repo, nil)

	// now is 15:00 UTC
	seed(t, repo, userID,
		read{category: "sports", ago: 14 * time.Hour},
		read{category: "sports", ago: 16 * time.Hour},
		read{category: "sports", ago: 3 * 24 * time.Hour},
		read{category: "sports", ago: 10 * 24 * time.Hour},
	)

	stats, err := service.Stats(ctx, userID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	want := models.ReadingStats{Today: 1, Week: 3, Total: 4}
	if stats != want {
		t.Errorf("Expected %+v, got %+v", want, stats)
	}
}

func TestService_HistoryAndClear(t *testing.T) {
	ctx := context.Background()
	repo, userID := newTestStore(t)
	service := newTestService(repo, nil)

	empty, err := service.History(ctx, userID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil history, got %v", empty)
	}

	seed(t, repo, userID, repeat(120, read{category: "science", ago: time.Minute}, time.Minute)...)

	history, _ := service.History(ctx, userID, 0)
	if len(history) != DefaultHistoryLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultHistoryLimit, len(history))
	}
	if !history[0].ReadAt.After(history[1].ReadAt) {
		t.Error("Expected most recent first")
	}

	limited, _ := service.History(ctx, userID, 5)
	if len(limited) != 5 {
		t.Errorf("Expected 5 entries, got %d", len(limited))
	}

	removed, err := service.ClearHistory(ctx, userID)
	if err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	if removed != 120 {
		t.Errorf("Expected 120 removed, got %d", removed)
	}

	stats, _ := service.Stats(ctx, userID)
	if stats.Total != 0 {
		t.Errorf("Expected empty history after clear, got %d", stats.Total)
	}
}

func TestService_Export(t *testing.T) {
	ctx := context.Background()
	repo, userID := newTestStore(t)
	service := newTestService(repo, nil)

	seed(t, repo, userID, repeat(120, read{category: "science", sentiment: "positive", ago: time.Minute}, time.Minute)...)

	export, err := service.Export(ctx, userID)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if export.User.Email != "reader@example.com" {
		t.Errorf("Expected reader@example.com, got %s", export.User.Email)
	}
	if len(export.ReadingHistory) != 120 {
		t.Errorf("Expected full history of 120, got %d", len(export.ReadingHistory))
	}
	if !export.ReadingHistory[0].ReadAt.After(export.ReadingHistory[1].ReadAt) {
		t.Error("Expected most recent first")
	}
	if export.Stats.Total != 120 {
		t.Errorf("Expected total 120, got %d", export.Stats.Total)
	}
	if fmt.Sprint(export.Preferences.Interests) != "[technology]" {
		t.Errorf("Expected default preferences, got %+v", export.Preferences)
	}
	if !export.ExportedAt.Equal(now) {
		t.Errorf("Expected export time %v, got %v", now, export.ExportedAt)
	}

	if _, err := service.Export(ctx, userID+100); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestService_Preferences(t *testing.T) {
	ctx := context.Background()
	repo, userID := newTestStore(t)
	service := newTestService(repo, nil)

	prefs, err := service.Preferences(ctx, userID)
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if fmt.Sprint(prefs.Interests) != "[technology]" || prefs.MaxArticles != models.DefaultMaxArticles {
		t.Errorf("Expected defaults, got %+v", prefs)
	}

	tests := []struct {
		name    string
		prefs   models.Preferences
		userID  int64
		wantErr error
	}{
		{"max articles too low", models.Preferences{MaxArticles: 0}, userID, models.ErrInvalidPreferences},
		{"max articles too high", models.Preferences{MaxArticles: 101}, userID, models.ErrInvalidPreferences},
		{"unknown filter", models.Preferences{MaxArticles: 5, SentimentFilter: "happy"}, userID, models.ErrInvalidPreferences},
		{"unknown user", models.Preferences{MaxArticles: 5}, userID + 100, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.SavePreferences(ctx, tt.userID, tt.prefs); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	saved, err := service.SavePreferences(ctx, userID, models.Preferences{
		Interests:       []string{" AI ", "ai", "Space"},
		SentimentFilter: "Positive",
		MaxArticles:     8,
	})
	if err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}
	if fmt.Sprint(saved.Interests) != "[ai space]" || saved.SentimentFilter != "positive" || saved.Language != "en" {
		t.Errorf("Expected normalized preferences, got %+v", saved)
	}

	stored, _ := service.Preferences(ctx, userID)
	if fmt.Sprint(stored.Interests) != "[ai space]" {
		t.Errorf("Expected stored preferences, got %+v", stored)
	}

	exists, _ := service.UserExists(ctx, userID)
	missing, _ := service.UserExists(ctx, userID+100)
	if !exists || missing {
		t.Errorf("Unexpected UserExists results %v, %v", exists, missing)
	}
}
