package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/selivandex/news-digest/internal/adapters/database"
	"github.com/selivandex/news-digest/pkg/models"
)

const pqForeignKeyViolation = "23503"

// Repository handles user data persistence in Postgres
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates new user
func (r *Repository) CreateUser(ctx context.Context, email, fullName string) (*models.User, error) {
	var user models.User

	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (email, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, email, full_name, telegram_chat_id, articles_read, created_at, updated_at
	`, strings.TrimSpace(email), fullName, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// GetUser finds user by id
func (r *Repository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User

	err := r.db.GetContext(ctx, &user, `
		SELECT id, email, full_name, telegram_chat_id, articles_read, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByTelegramChatID finds user linked to a Telegram chat
func (r *Repository) GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User

	err := r.db.GetContext(ctx, &user, `
		SELECT id, email, full_name, telegram_chat_id, articles_read, created_at, updated_at
		FROM users
		WHERE telegram_chat_id = $1
	`, chatID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by chat: %w", err)
	}

	return &user, nil
}

// LinkTelegramChat attaches a Telegram chat to the user
func (r *Repository) LinkTelegramChat(ctx context.Context, userID, chatID int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET telegram_chat_id = $2, updated_at = $3 WHERE id = $1
	`, userID, chatID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to link telegram chat: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check link result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// GetPreferences loads stored preferences
func (r *Repository) GetPreferences(ctx context.Context, userID int64) (*models.Preferences, error) {
	var prefs models.Preferences

	err := r.db.QueryRowContext(ctx, `
		SELECT interests, sentiment_filter, language, max_articles
		FROM user_preferences
		WHERE user_id = $1
	`, userID).Scan(
		pq.Array(&prefs.Interests), &prefs.SentimentFilter, &prefs.Language, &prefs.MaxArticles,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return &prefs, nil
}

// SavePreferences upserts preferences
func (r *Repository) SavePreferences(ctx context.Context, userID int64, prefs models.Preferences) error {
	stored := prefs.ForStorage()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, interests, sentiment_filter, language, max_articles, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			interests = EXCLUDED.interests,
			sentiment_filter = EXCLUDED.sentiment_filter,
			language = EXCLUDED.language,
			max_articles = EXCLUDED.max_articles,
			updated_at = EXCLUDED.updated_at
	`, userID, pq.Array(stored.Interests), stored.SentimentFilter, stored.Language, stored.MaxArticles, time.Now().UTC())

	if isForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	return nil
}

// AppendRead inserts a history row and bumps the user's counter in one
// transaction. Duplicate URLs are ignored.
func (r *Repository) AppendRead(ctx context.Context, entry models.ReadingEntry) (bool, error) {
	readAt := entry.ReadAt
	if readAt.IsZero() {
		readAt = time.Now().UTC()
	}

	inserted := false
	err := database.Transact(ctx, r.db, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO reading_history (user_id, article_title, article_url, category, sentiment, read_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, article_url) DO NOTHING
			RETURNING id
		`, entry.UserID, entry.ArticleTitle, entry.ArticleURL, entry.Category, entry.Sentiment, readAt).Scan(&id)

		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to append read: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET articles_read = articles_read + 1, updated_at = $2 WHERE id = $1
		`, entry.UserID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to increment read counter: %w", err)
		}

		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// QueryHistory returns entries most recent first
func (r *Repository) QueryHistory(ctx context.Context, userID int64, since time.Time, limit int) ([]models.ReadingEntry, error) {
	query := `
		SELECT id, user_id, article_title, article_url, category, sentiment, read_at
		FROM reading_history
		WHERE user_id = $1 AND read_at >= $2
		ORDER BY read_at DESC, id DESC`
	args := []interface{}{userID, since}

	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	var entries []models.ReadingEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	return entries, nil
}

// CountHistory counts entries read at or after since
func (r *Repository) CountHistory(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int

	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM reading_history WHERE user_id = $1 AND read_at >= $2
	`, userID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}

	return count, nil
}

// DeleteHistory removes all entries of the user
func (r *Repository) DeleteHistory(ctx context.Context, userID int64) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reading_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}

	return int(affected), nil
}

// ListActiveUserIDs returns users who read anything since the given time
func (r *Repository) ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error) {
	var ids []int64

	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT user_id FROM reading_history WHERE read_at >= $1 ORDER BY user_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	return ids, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
