package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const DefaultNewsAPIURL = "https://newsapi.org/v2/"

// NewsAPISource fetches articles from a NewsAPI-compatible HTTP API
type NewsAPISource struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewNewsAPISource creates new NewsAPI source
func NewNewsAPISource(baseURL, apiKey string, timeout time.Duration) *NewsAPISource {
	if baseURL == "" {
		baseURL = DefaultNewsAPIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &NewsAPISource{
		client:  newHTTPClient(timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (s *NewsAPISource) Name() string {
	return "newsapi"
}

// Search calls the everything endpoint sorted by publish time
func (s *NewsAPISource) Search(ctx context.Context, q SearchQuery) ([]models.RawArticle, error) {
	params := url.Values{}
	params.Set("q", q.Topic)
	params.Set("sortBy", "publishedAt")
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if !q.Since.IsZero() {
		params.Set("from", q.Since.UTC().Format("2006-01-02"))
	}

	articles, err := s.get(ctx, "everything", params)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Topic, err)
	}

	logger.Debug("fetched NewsAPI search",
		zap.String("topic", q.Topic),
		zap.Int("count", len(articles)),
	)

	return articles, nil
}

// Headlines calls the top-headlines endpoint
func (s *NewsAPISource) Headlines(ctx context.Context, q HeadlinesQuery) ([]models.RawArticle, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}

	articles, err := s.get(ctx, "top-headlines", params)
	if err != nil {
		return nil, fmt.Errorf("headlines %q: %w", q.Category, err)
	}

	logger.Debug("fetched NewsAPI headlines",
		zap.String("category", q.Category),
		zap.Int("count", len(articles)),
	)

	return articles, nil
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (s *NewsAPISource) get(ctx context.Context, endpoint string, params url.Values) ([]models.RawArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var result newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Status != "" && result.Status != "ok" {
		return nil, fmt.Errorf("api error %s: %s", result.Code, result.Message)
	}

	articles := make([]models.RawArticle, 0, len(result.Articles))
	for _, a := range result.Articles {
		articles = append(articles, models.RawArticle{
			PublishedAt: parsePublishedAt(a.PublishedAt),
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			Author:      a.Author,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			SourceName:  a.Source.Name,
		})
	}

	return articles, nil
}

// parsePublishedAt returns zero time for missing or malformed timestamps
func parsePublishedAt(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
