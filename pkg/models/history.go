package models

import "time"

// ReadingEntry is one row of a user's append-only reading history.
// (UserID, ArticleURL) is unique.
type ReadingEntry struct {
	ReadAt       time.Time `json:"read_at" db:"read_at"`
	ArticleTitle string    `json:"article_title" db:"article_title"`
	ArticleURL   string    `json:"article_url" db:"article_url"`
	Category     string    `json:"category" db:"category"`
	Sentiment    string    `json:"sentiment" db:"sentiment"`
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
}

// ReadingStats counts reads bucketed against the current time
type ReadingStats struct {
	Today int `json:"today"`
	Week  int `json:"week"`
	Total int `json:"total"`
}

// ReadEvent is an analytics record emitted for each newly recorded read
type ReadEvent struct {
	ReadAt     time.Time
	Category   string
	Sentiment  string
	ArticleURL string
	Source     string
	UserID     int64
}

// DataExport is everything stored about one user
type DataExport struct {
	ExportedAt     time.Time      `json:"exported_at"`
	User           User           `json:"user"`
	Preferences    Preferences    `json:"preferences"`
	Stats          ReadingStats   `json:"stats"`
	ReadingHistory []ReadingEntry `json:"reading_history"`
}
