package news

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

// FallbackSource asks the secondary source whenever the primary one fails or
// returns nothing
type FallbackSource struct {
	primary   Source
	secondary Source
}

// NewFallbackSource creates new fallback source
func NewFallbackSource(primary, secondary Source) *FallbackSource {
	return &FallbackSource{primary: primary, secondary: secondary}
}

func (f *FallbackSource) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *FallbackSource) Search(ctx context.Context, q SearchQuery) ([]models.RawArticle, error) {
	return f.try(ctx, "search", func(s Source) ([]models.RawArticle, error) {
		return s.Search(ctx, q)
	})
}

func (f *FallbackSource) Headlines(ctx context.Context, q HeadlinesQuery) ([]models.RawArticle, error) {
	return f.try(ctx, "headlines", func(s Source) ([]models.RawArticle, error) {
		return s.Headlines(ctx, q)
	})
}

func (f *FallbackSource) try(ctx context.Context, op string, call func(Source) ([]models.RawArticle, error)) ([]models.RawArticle, error) {
	articles, err := call(f.primary)
	if err == nil && len(articles) > 0 {
		return articles, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logger.Debug("falling back to secondary source",
		zap.String("op", op),
		zap.String("primary", f.primary.Name()),
		zap.String("secondary", f.secondary.Name()),
		zap.Error(err),
	)

	fallback, fallbackErr := call(f.secondary)
	if fallbackErr == nil {
		return fallback, nil
	}
	if err == nil {
		// primary answered with nothing; that is not a failure
		return articles, nil
	}

	return nil, errors.Join(err, fallbackErr)
}
