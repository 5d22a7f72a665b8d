package digest

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/news-digest/internal/adapters/news"
	"github.com/selivandex/news-digest/internal/classify"
	"github.com/selivandex/news-digest/internal/sentiment"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const removedMarker = "[Removed]"

// Options tune how batches are requested from the source
type Options struct {
	Country          string
	HeadlineCategory string
	PageSize         int
	HeadlineSize     int
	HeadlineKeep     int
	Concurrency      int
	Lookback         time.Duration
	FetchTimeout     time.Duration
	ScoreTimeout     time.Duration // per article; defaults to FetchTimeout
}

// DefaultOptions returns the stock batch sizes and timeouts
func DefaultOptions() Options {
	return Options{
		Country:          "us",
		HeadlineCategory: classify.General,
		PageSize:         20,
		HeadlineSize:     50,
		HeadlineKeep:     20,
		Concurrency:      4,
		Lookback:         72 * time.Hour,
		FetchTimeout:     10 * time.Second,
	}
}

// Aggregator builds personalized digests
type Aggregator struct {
	source news.Source
	scorer sentiment.Scorer
	memory *SeenMemory
	now    func() time.Time
	opts   Options
}

// NewAggregator creates new news aggregator. Zero option fields fall back to
// DefaultOptions.
func NewAggregator(source news.Source, scorer sentiment.Scorer, memory *SeenMemory, opts Options) *Aggregator {
	defaults := DefaultOptions()
	if opts.Country == "" {
		opts.Country = defaults.Country
	}
	if opts.HeadlineCategory == "" {
		opts.HeadlineCategory = defaults.HeadlineCategory
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaults.PageSize
	}
	if opts.HeadlineSize <= 0 {
		opts.HeadlineSize = defaults.HeadlineSize
	}
	if opts.HeadlineKeep <= 0 {
		opts.HeadlineKeep = defaults.HeadlineKeep
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.Lookback <= 0 {
		opts.Lookback = defaults.Lookback
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaults.FetchTimeout
	}
	if opts.ScoreTimeout <= 0 {
		opts.ScoreTimeout = opts.FetchTimeout
	}
	if scorer == nil {
		scorer = sentiment.NeutralScorer{}
	}
	if memory == nil {
		memory = NewSeenMemory()
	}

	return &Aggregator{
		source: source,
		scorer: scorer,
		memory: memory,
		now:    time.Now,
		opts:   opts,
	}
}

// Memory returns the seen memory shared by all digests
func (a *Aggregator) Memory() *SeenMemory {
	return a.memory
}

// ClearCache forgets which articles were shown to the user
func (a *Aggregator) ClearCache(userID int64) {
	a.memory.Clear(userID)
}

// FetchDigest returns up to prefs.MaxArticles unseen articles for the user,
// newest first, and marks them as shown. Source failures degrade to fewer
// articles and are never returned.
func (a *Aggregator) FetchDigest(ctx context.Context, userID int64, prefs models.Preferences) []models.Article {
	started := a.now()

	batches := a.fetchBatches(ctx, prefs)

	var kept [][]models.Article
	for _, b := range batches {
		unseen := a.memory.FilterUnseen(userID, b.articles)
		if len(unseen) > b.keep {
			unseen = unseen[:b.keep]
		}
		kept = append(kept, unseen)
	}

	articles := mergeUnique(kept)
	a.tag(ctx, articles)
	articles = filterBySentiment(articles, prefs.SentimentFilter)

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})

	limit := prefs.MaxArticles
	if limit <= 0 {
		limit = models.DefaultMaxArticles
	}
	if len(articles) > limit {
		articles = articles[:limit]
	}

	a.memory.MarkShown(userID, articles)

	logger.Info("digest built",
		zap.Int64("user_id", userID),
		zap.Int("interests", len(prefs.Interests)),
		zap.Int("articles", len(articles)),
		zap.Duration("took", a.now().Sub(started)),
	)

	return articles
}

type batch struct {
	articles []models.Article
	keep     int
}

// fetchBatches fetches one batch per interest concurrently, in interest
// order, or a single headlines batch when there are no interests
func (a *Aggregator) fetchBatches(ctx context.Context, prefs models.Preferences) []batch {
	if len(prefs.Interests) == 0 {
		raw := a.fetch(ctx, "headlines:"+a.opts.HeadlineCategory, func(ctx context.Context) ([]models.RawArticle, error) {
			return a.source.Headlines(ctx, news.HeadlinesQuery{
				Category: a.opts.HeadlineCategory,
				Country:  a.opts.Country,
				PageSize: a.opts.HeadlineSize,
			})
		})
		return []batch{{articles: qualityFilter(raw), keep: a.opts.HeadlineKeep}}
	}

	since := a.now().Add(-a.opts.Lookback)
	batches := make([]batch, len(prefs.Interests))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)

	for i, interest := range prefs.Interests {
		g.Go(func() error {
			raw := a.fetch(ctx, interest, func(ctx context.Context) ([]models.RawArticle, error) {
				return a.source.Search(ctx, news.SearchQuery{
					Topic:    interest,
					Language: prefs.Language,
					PageSize: a.opts.PageSize * 2,
					Since:    since,
				})
			})
			batches[i] = batch{articles: qualityFilter(raw), keep: a.opts.PageSize}
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

// fetch runs one source call under the fetch timeout. Failures are logged
// and become an empty batch.
func (a *Aggregator) fetch(ctx context.Context, topic string, call func(context.Context) ([]models.RawArticle, error)) []models.RawArticle {
	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	raw, err := call(fetchCtx)
	if err != nil {
		logger.Warn("news fetch failed",
			zap.String("source", a.source.Name()),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil
	}

	logger.Debug("news batch fetched",
		zap.String("source", a.source.Name()),
		zap.String("topic", topic),
		zap.Int("count", len(raw)),
	)

	return raw
}

// tag sets sentiment and category on every article
func (a *Aggregator) tag(ctx context.Context, articles []models.Article) {
	for i := range articles {
		text := articles[i].AnalysisText()

		scoreCtx, cancel := context.WithTimeout(ctx, a.opts.ScoreTimeout)
		s, err := a.scorer.Score(scoreCtx, text)
		cancel()
		if err != nil {
			logger.Debug("sentiment scoring failed, using neutral",
				zap.String("scorer", a.scorer.Name()),
				zap.String("url", articles[i].URL),
				zap.Error(err),
			)
			s = models.NeutralSentiment()
		}

		articles[i].Sentiment = s.Label
		articles[i].SentimentScore = s.Score
		articles[i].Category = classify.Classify(text)
	}
}

// qualityFilter drops records that cannot be shown as a digest entry
func qualityFilter(raw []models.RawArticle) []models.Article {
	articles := make([]models.Article, 0, len(raw))
	for _, r := range raw {
		if !isQuality(r) {
			continue
		}
		articles = append(articles, r.ToArticle())
	}
	return articles
}

func isQuality(r models.RawArticle) bool {
	if strings.TrimSpace(r.URL) == "" {
		return false
	}
	if r.Title == "" || r.Title == removedMarker || utf8.RuneCountInString(r.Title) <= 10 {
		return false
	}
	if r.Description == "" || r.Description == removedMarker || utf8.RuneCountInString(r.Description) <= 20 {
		return false
	}
	return true
}

// mergeUnique concatenates batches keeping the first article seen for each URL
func mergeUnique(batches [][]models.Article) []models.Article {
	seen := make(map[string]struct{})
	var merged []models.Article
	for _, b := range batches {
		for _, article := range b {
			if _, dup := seen[article.URL]; dup {
				continue
			}
			seen[article.URL] = struct{}{}
			merged = append(merged, article)
		}
	}
	return merged
}

func filterBySentiment(articles []models.Article, filter string) []models.Article {
	if filter == "" || strings.EqualFold(filter, models.FilterAll) {
		return articles
	}

	filtered := make([]models.Article, 0, len(articles))
	for _, article := range articles {
		if strings.EqualFold(article.Sentiment, filter) {
			filtered = append(filtered, article)
		}
	}
	return filtered
}
