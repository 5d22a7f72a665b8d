package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/adapters/database"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

// Repository handles ClickHouse read-event analytics
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new ClickHouse repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the read_events table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS read_events (
			read_at     DateTime64(3, 'UTC'),
			user_id     Int64,
			article_url String,
			category    LowCardinality(String),
			sentiment   LowCardinality(String),
			source      String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(read_at)
		ORDER BY (user_id, read_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create read_events table: %w", err)
	}
	return nil
}

// SaveReadEvents inserts read events in one batch
func (r *Repository) SaveReadEvents(ctx context.Context, events []models.ReadEvent) error {
	if len(events) == 0 {
		return nil
	}

	// ClickHouse batches every row of the prepared insert into one block
	err := database.Transact(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO read_events (read_at, user_id, article_url, category, sentiment, source)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, event := range events {
			if _, err := stmt.ExecContext(ctx,
				event.ReadAt.UTC(),
				event.UserID,
				event.ArticleURL,
				event.Category,
				event.Sentiment,
				event.Source,
			); err != nil {
				return fmt.Errorf("failed to insert read event: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("saved read events to ClickHouse",
		zap.Int("count", len(events)),
	)

	return nil
}

// CategoryCount is the number of reads in a category
type CategoryCount struct {
	Category string `db:"category"`
	Reads    uint64 `db:"reads"`
}

// TopCategories returns the most read categories across all users since the given time
func (r *Repository) TopCategories(ctx context.Context, since time.Time, limit int) ([]CategoryCount, error) {
	var counts []CategoryCount

	err := r.db.SelectContext(ctx, &counts, `
		SELECT category, count() AS reads
		FROM read_events
		WHERE read_at >= ?
		GROUP BY category
		ORDER BY reads DESC, category
		LIMIT ?
	`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top categories: %w", err)
	}

	return counts, nil
}
