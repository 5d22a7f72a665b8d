package users

import (
	"context"
	"errors"
	"time"

	"github.com/selivandex/news-digest/pkg/models"
)

// ErrUserNotFound is returned when an operation needs an existing user
var ErrUserNotFound = errors.New("user not found")

// PreferenceStore persists digest preferences. GetPreferences returns nil, nil
// when the user has none stored. Concurrent saves are last-writer-wins.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID int64) (*models.Preferences, error)
	SavePreferences(ctx context.Context, userID int64, prefs models.Preferences) error
}

// HistoryStore persists the append-only reading history.
// A zero since and a non-positive limit mean unbounded.
type HistoryStore interface {
	// AppendRead stores the entry unless (UserID, ArticleURL) already exists.
	// It reports whether a row was inserted; only then is the user's read
	// counter incremented.
	AppendRead(ctx context.Context, entry models.ReadingEntry) (bool, error)

	// QueryHistory returns entries read at or after since, most recent first
	QueryHistory(ctx context.Context, userID int64, since time.Time, limit int) ([]models.ReadingEntry, error)

	CountHistory(ctx context.Context, userID int64, since time.Time) (int, error)

	// DeleteHistory removes every entry of the user and returns how many
	DeleteHistory(ctx context.Context, userID int64) (int, error)
}

// Store is everything the service needs from user storage
type Store interface {
	PreferenceStore
	HistoryStore

	CreateUser(ctx context.Context, email, fullName string) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	LinkTelegramChat(ctx context.Context, userID, chatID int64) error

	// ListActiveUserIDs returns users with at least one read at or after since
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error)
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryRepository)(nil)
)
