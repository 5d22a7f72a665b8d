package news

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/adapters/config"
	"github.com/selivandex/news-digest/pkg/logger"
)

// NewFromConfig builds the configured article source. Requests are always
// coalesced; raw batches are also cached when cache is not nil.
func NewFromConfig(cfg *config.NewsConfig, cache BatchCache) (Source, error) {
	var source Source

	switch cfg.Provider {
	case "newsapi":
		source = NewNewsAPISource(cfg.BaseURL, cfg.APIKey, cfg.FetchTimeout)

	case "rss":
		feeds, err := LoadFeeds(cfg.FeedsFile)
		if err != nil {
			return nil, err
		}
		source = NewRSSSource(feeds, cfg.FetchTimeout)

	case "fallback":
		feeds, err := LoadFeeds(cfg.FeedsFile)
		if err != nil {
			return nil, err
		}
		source = NewFallbackSource(
			NewNewsAPISource(cfg.BaseURL, cfg.APIKey, cfg.FetchTimeout),
			NewRSSSource(feeds, cfg.FetchTimeout),
		)

	default:
		return nil, fmt.Errorf("unknown news provider %q", cfg.Provider)
	}

	logger.Info("news source initialized",
		zap.String("source", source.Name()),
		zap.Bool("shared_cache", cache != nil),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return NewCachedSource(source, cache, cfg.CacheTTL), nil
}
