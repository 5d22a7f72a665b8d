package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const newsAPIBody = `{
  "status": "ok",
  "totalResults": 2,
  "articles": [
    {
      "source": {"id": null, "name": "Example Times"},
      "author": "Jane Roe",
      "title": "Chip makers report record quarter",
      "description": "Demand for accelerators kept growing through the summer.",
      "url": "https://example.com/chips",
      "urlToImage": "https://example.com/chips.jpg",
      "publishedAt": "2024-05-01T10:00:00Z",
      "content": "Full text"
    },
    {
      "source": {"id": "wire", "name": "Wire"},
      "author": null,
      "title": "Untimed story",
      "description": null,
      "url": "https://example.com/untimed",
      "urlToImage": null,
      "publishedAt": "not a date",
      "content": null
    }
  ]
}`

func TestNewsAPISource_Search(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(newsAPIBody))
	}))
	defer server.Close()

	source := NewNewsAPISource(server.URL, "secret", time.Second)
	since := time.Date(2024, 4, 28, 15, 30, 0, 0, time.UTC)

	articles, err := source.Search(context.Background(), SearchQuery{
		Topic:    "ai",
		Language: "en",
		PageSize: 40,
		Since:    since,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if got.URL.Path != "/everything" {
		t.Errorf("Expected path /everything, got %s", got.URL.Path)
	}
	query := got.URL.Query()
	expected := map[string]string{
		"q":        "ai",
		"language": "en",
		"pageSize": "40",
		"from":     "2024-04-28",
		"sortBy":   "publishedAt",
	}
	for key, value := range expected {
		if query.Get(key) != value {
			t.Errorf("Expected %s=%s, got %q", key, value, query.Get(key))
		}
	}
	if got.Header.Get("X-Api-Key") != "secret" {
		t.Errorf("Expected api key header, got %q", got.Header.Get("X-Api-Key"))
	}

	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.SourceName != "Example Times" || first.Author != "Jane Roe" || first.ImageURL != "https://example.com/chips.jpg" {
		t.Errorf("Unexpected first article: %+v", first)
	}
	if !first.PublishedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected publish time %v", first.PublishedAt)
	}

	second := articles[1]
	if second.Description != "" || second.Author != "" {
		t.Errorf("Expected null fields to become empty strings, got %+v", second)
	}
	if !second.PublishedAt.IsZero() {
		t.Errorf("Expected zero time for malformed timestamp, got %v", second.PublishedAt)
	}
}

func TestNewsAPISource_Headlines(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer server.Close()

	source := NewNewsAPISource(server.URL+"/v2", "secret", time.Second)

	articles, err := source.Headlines(context.Background(), HeadlinesQuery{
		Category: "general",
		Country:  "us",
		PageSize: 50,
	})
	if err != nil {
		t.Fatalf("Headlines failed: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("Expected no articles, got %d", len(articles))
	}

	if got.URL.Path != "/v2/top-headlines" {
		t.Errorf("Expected path /v2/top-headlines, got %s", got.URL.Path)
	}
	if got.URL.Query().Get("country") != "us" || got.URL.Query().Get("category") != "general" {
		t.Errorf("Unexpected query %s", got.URL.RawQuery)
	}
}

func TestNewsAPISource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusUnauthorized, `{"status":"error","code":"apiKeyInvalid"}`},
		{"api error", http.StatusOK, `{"status":"error","code":"rateLimited","message":"slow down"}`},
		{"malformed body", http.StatusOK, `{"status":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			source := NewNewsAPISource(server.URL, "key", time.Second)
			articles, err := source.Search(context.Background(), SearchQuery{Topic: "ai"})
			if err == nil {
				t.Fatal("Expected error")
			}
			if articles != nil {
				t.Errorf("Expected nil articles on error, got %d", len(articles))
			}
		})
	}
}

func TestNewsAPISource_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	source := NewNewsAPISource(server.URL, "key", 5*time.Second)
	if _, err := source.Search(ctx, SearchQuery{Topic: "ai"}); err == nil {
		t.Error("Expected error after context deadline")
	}
}
