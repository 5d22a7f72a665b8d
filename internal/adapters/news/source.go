package news

import (
	"context"
	"net/http"
	"time"

	"github.com/selivandex/news-digest/pkg/models"
)

// SearchQuery asks a source for articles about a topic
type SearchQuery struct {
	Since    time.Time
	Topic    string
	Language string
	PageSize int
}

// HeadlinesQuery asks a source for top headlines
type HeadlinesQuery struct {
	Category string
	Country  string
	PageSize int
}

// Source represents an article source. Implementations return an error on
// transport or parse failures and never retry.
type Source interface {
	// Name returns source name
	Name() string

	// Search returns articles matching the topic, newest first
	Search(ctx context.Context, q SearchQuery) ([]models.RawArticle, error)

	// Headlines returns top headlines for a category and country
	Headlines(ctx context.Context, q HeadlinesQuery) ([]models.RawArticle, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
