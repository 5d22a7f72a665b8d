package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NEWS_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.HTTP.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.HTTP.Port)
	}
	if cfg.News.Provider != "newsapi" || cfg.News.PageSize != 20 || cfg.News.HeadlineSize != 50 {
		t.Errorf("Unexpected news defaults %+v", cfg.News)
	}
	if cfg.Digest.MemoryCapacity != 200 || cfg.Digest.MemoryRetain != 100 || cfg.Digest.MemoryTTL != 2*time.Hour {
		t.Errorf("Unexpected digest defaults %+v", cfg.Digest)
	}
	if cfg.Sentiment.Timeout != 5*time.Second {
		t.Errorf("Expected 5s sentiment timeout, got %v", cfg.Sentiment.Timeout)
	}
	if cfg.News.Lookback != 72*time.Hour {
		t.Errorf("Expected 72h lookback, got %v", cfg.News.Lookback)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NEWS_PROVIDER", "rss")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DIGEST_MEMORY_TTL", "30m")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.News.Provider != "rss" || cfg.Storage.Driver != "memory" {
		t.Errorf("Expected overrides applied, got provider=%s storage=%s", cfg.News.Provider, cfg.Storage.Driver)
	}
	if cfg.Digest.MemoryTTL != 30*time.Minute {
		t.Errorf("Expected 30m ttl, got %v", cfg.Digest.MemoryTTL)
	}
	if !strings.Contains(cfg.Database.GetDSN(), "port=6543") {
		t.Errorf("Expected port in DSN, got %s", cfg.Database.GetDSN())
	}
}

func validConfig() *Config {
	return &Config{
		News: NewsConfig{
			Provider:         "newsapi",
			APIKey:           "key",
			PageSize:         20,
			FetchTimeout:     10 * time.Second,
			FetchConcurrency: 4,
		},
		Digest: DigestConfig{
			MemoryCapacity: 200,
			MemoryRetain:   100,
			MemoryTTL:      2 * time.Hour,
		},
		Sentiment: SentimentConfig{Strategy: "keyword", Timeout: 5 * time.Second},
		Storage:   StorageConfig{Driver: "postgres"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"newsapi without key", func(c *Config) { c.News.APIKey = "" }, "api key"},
		{"rss without key", func(c *Config) { c.News.Provider = "rss"; c.News.APIKey = "" }, ""},
		{"unknown provider", func(c *Config) { c.News.Provider = "fax" }, "unknown news provider"},
		{"retain above capacity", func(c *Config) { c.Digest.MemoryRetain = 300 }, "retain"},
		{"zero ttl", func(c *Config) { c.Digest.MemoryTTL = 0 }, "ttl"},
		{"zero sentiment timeout", func(c *Config) { c.Sentiment.Timeout = 0 }, "sentiment timeout"},
		{"llm without key", func(c *Config) { c.Sentiment.Strategy = "llm" }, "openai"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage driver"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, "telegram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClickHouseConfig_GetDSN(t *testing.T) {
	cfg := ClickHouseConfig{Host: "ch", Port: 9000, Database: "news", User: "default", Password: "secret"}

	want := "clickhouse://default:secret@ch:9000/news"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
