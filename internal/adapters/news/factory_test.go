package news

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/selivandex/news-digest/internal/adapters/config"
)

func writeFeedsFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "feeds.yaml")
	content := "topics:\n  Technology:\n    - https://example.com/tech.xml\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write feeds file: %v", err)
	}
	return path
}

func TestNewFromConfig(t *testing.T) {
	feedsFile := writeFeedsFile(t)

	tests := []struct {
		name     string
		provider string
		feeds    string
		wantName string
		wantErr  bool
	}{
		{"newsapi", "newsapi", "", "newsapi", false},
		{"rss", "rss", feedsFile, "rss", false},
		{"fallback", "fallback", feedsFile, "newsapi+rss", false},
		{"rss without feeds file", "rss", filepath.Join(t.TempDir(), "missing.yaml"), "", true},
		{"unknown", "carrier-pigeon", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.NewsConfig{
				Provider:     tt.provider,
				APIKey:       "key",
				BaseURL:      "https://newsapi.example/v2/",
				FeedsFile:    tt.feeds,
				FetchTimeout: time.Second,
				CacheTTL:     time.Minute,
			}

			source, err := NewFromConfig(cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if source.Name() != tt.wantName {
				t.Errorf("Expected source %q, got %q", tt.wantName, source.Name())
			}
		})
	}
}
