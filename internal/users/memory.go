package users

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/selivandex/news-digest/pkg/models"
)

// MemoryRepository keeps users in process memory. It backs STORAGE_DRIVER=memory
// and tests; its contents do not survive a restart.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   map[int64]*models.User
	prefs   map[int64]models.Preferences
	history map[int64][]models.ReadingEntry
	nextID  int64
	nextRow int64
	now     func() time.Time
}

// NewMemoryRepository creates new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[int64]*models.User),
		prefs:   make(map[int64]models.Preferences),
		history: make(map[int64][]models.ReadingEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) CreateUser(ctx context.Context, email, fullName string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = strings.TrimSpace(email)
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return nil, fmt.Errorf("failed to create user: email %s already registered", email)
		}
	}

	r.nextID++
	now := r.now()
	user := &models.User{
		ID:        r.nextID,
		Email:     email,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[user.ID] = user

	copied := *user
	return &copied, nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryRepository) GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.TelegramChatID != nil && *user.TelegramChatID == chatID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) LinkTelegramChat(ctx context.Context, userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	for _, other := range r.users {
		if other.ID != userID && other.TelegramChatID != nil && *other.TelegramChatID == chatID {
			return fmt.Errorf("failed to link telegram chat: chat %d already linked", chatID)
		}
	}

	id := chatID
	user.TelegramChatID = &id
	user.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) GetPreferences(ctx context.Context, userID int64) (*models.Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefs, ok := r.prefs[userID]
	if !ok {
		return nil, nil
	}
	prefs.Interests = append([]string(nil), prefs.Interests...)
	return &prefs, nil
}

func (r *MemoryRepository) SavePreferences(ctx context.Context, userID int64, prefs models.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	r.prefs[userID] = *prefs.ForStorage()
	return nil
}

func (r *MemoryRepository) AppendRead(ctx context.Context, entry models.ReadingEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[entry.UserID]
	if !ok {
		return false, ErrUserNotFound
	}

	for _, existing := range r.history[entry.UserID] {
		if existing.ArticleURL == entry.ArticleURL {
			return false, nil
		}
	}

	if entry.ReadAt.IsZero() {
		entry.ReadAt = r.now()
	}
	r.nextRow++
	entry.ID = r.nextRow
	r.history[entry.UserID] = append(r.history[entry.UserID], entry)
	user.ArticlesRead++

	return true, nil
}

func (r *MemoryRepository) QueryHistory(ctx context.Context, userID int64, since time.Time, limit int) ([]models.ReadingEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []models.ReadingEntry
	for _, entry := range r.history[userID] {
		if entry.ReadAt.Before(since) {
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ReadAt.Equal(entries[j].ReadAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].ReadAt.After(entries[j].ReadAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *MemoryRepository) CountHistory(ctx context.Context, userID int64, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, entry := range r.history[userID] {
		if !entry.ReadAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) DeleteHistory(ctx context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := len(r.history[userID])
	delete(r.history, userID)
	return removed, nil
}

func (r *MemoryRepository) ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for userID, entries := range r.history {
		for _, entry := range entries {
			if !entry.ReadAt.Before(since) {
				ids = append(ids, userID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
