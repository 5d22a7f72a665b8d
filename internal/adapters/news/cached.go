package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

// BatchCache stores encoded article batches. Get returns nil, nil on a miss.
type BatchCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedSource coalesces identical concurrent requests and keeps raw batches
// in a shared cache for ttl. Cache failures are logged and bypassed.
type CachedSource struct {
	source Source
	cache  BatchCache
	group  singleflight.Group
	ttl    time.Duration
}

// NewCachedSource wraps source. A nil cache only coalesces requests.
func NewCachedSource(source Source, cache BatchCache, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache,
		ttl:    ttl,
	}
}

func (c *CachedSource) Name() string {
	return c.source.Name()
}

func (c *CachedSource) Search(ctx context.Context, q SearchQuery) ([]models.RawArticle, error) {
	since := ""
	if !q.Since.IsZero() {
		since = q.Since.UTC().Format("2006-01-02")
	}
	key := fmt.Sprintf("news:%s:search:%s:%s:%d:%s",
		c.source.Name(), strings.ToLower(q.Topic), q.Language, q.PageSize, since)

	return c.load(ctx, key, func(ctx context.Context) ([]models.RawArticle, error) {
		return c.source.Search(ctx, q)
	})
}

func (c *CachedSource) Headlines(ctx context.Context, q HeadlinesQuery) ([]models.RawArticle, error) {
	key := fmt.Sprintf("news:%s:headlines:%s:%s:%d",
		c.source.Name(), strings.ToLower(q.Category), q.Country, q.PageSize)

	return c.load(ctx, key, func(ctx context.Context) ([]models.RawArticle, error) {
		return c.source.Headlines(ctx, q)
	})
}

func (c *CachedSource) load(ctx context.Context, key string, fetch func(context.Context) ([]models.RawArticle, error)) ([]models.RawArticle, error) {
	if articles, ok := c.lookup(ctx, key); ok {
		return articles, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		articles, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, articles)
		return articles, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		logger.Debug("shared in-flight source request", zap.String("key", key))
	}

	articles := v.([]models.RawArticle)
	return append([]models.RawArticle(nil), articles...), nil
}

func (c *CachedSource) lookup(ctx context.Context, key string) ([]models.RawArticle, bool) {
	if c.cache == nil {
		return nil, false
	}

	data, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("article cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var articles []models.RawArticle
	if err := json.Unmarshal(data, &articles); err != nil {
		logger.Warn("dropping malformed cached batch", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return articles, true
}

func (c *CachedSource) store(ctx context.Context, key string, articles []models.RawArticle) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}

	data, err := json.Marshal(articles)
	if err != nil {
		logger.Warn("failed to encode article batch", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		logger.Warn("article cache write failed", zap.String("key", key), zap.Error(err))
	}
}
