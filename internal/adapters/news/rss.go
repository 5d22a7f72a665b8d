package news

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const generalTopic = "general"

// FeedsConfig is the feeds file structure
//
//	topics:
//	  technology:
//	    - https://...
type FeedsConfig struct {
	Topics map[string][]string `yaml:"topics"`
}

// LoadFeeds reads topic to feed URL mapping from a YAML file
func LoadFeeds(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feeds file: %w", err)
	}
	defer f.Close()

	var cfg FeedsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode feeds file: %w", err)
	}

	feeds := make(map[string][]string, len(cfg.Topics))
	for topic, urls := range cfg.Topics {
		feeds[strings.ToLower(strings.TrimSpace(topic))] = urls
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s has no topics", path)
	}

	return feeds, nil
}

// RSSSource serves articles from RSS/Atom feeds grouped by topic.
// A topic without its own feeds is searched across every feed by keyword.
type RSSSource struct {
	parser *gofeed.Parser
	feeds  map[string][]string
}

// NewRSSSource creates new RSS source
func NewRSSSource(feeds map[string][]string, timeout time.Duration) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = newHTTPClient(timeout)

	return &RSSSource{
		parser: parser,
		feeds:  feeds,
	}
}

func (s *RSSSource) Name() string {
	return "rss"
}

func (s *RSSSource) Search(ctx context.Context, q SearchQuery) ([]models.RawArticle, error) {
	topic := strings.ToLower(strings.TrimSpace(q.Topic))

	urls, ok := s.feeds[topic]
	matchTopic := false
	if !ok {
		urls = s.allFeeds()
		matchTopic = true
	}

	items, err := s.fetch(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Topic, err)
	}

	articles := make([]models.RawArticle, 0, len(items))
	for _, item := range items {
		if !q.Since.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(q.Since) {
			continue
		}
		if matchTopic && !mentions(item, topic) {
			continue
		}
		articles = append(articles, item)
	}

	return newestFirst(articles, q.PageSize), nil
}

func (s *RSSSource) Headlines(ctx context.Context, q HeadlinesQuery) ([]models.RawArticle, error) {
	category := strings.ToLower(strings.TrimSpace(q.Category))
	if category == "" {
		category = generalTopic
	}

	urls, ok := s.feeds[category]
	if !ok {
		urls = s.allFeeds()
	}

	items, err := s.fetch(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("headlines %q: %w", q.Category, err)
	}

	return newestFirst(items, q.PageSize), nil
}

// fetch parses every feed, skipping broken ones. It fails only when no feed
// could be read.
func (s *RSSSource) fetch(ctx context.Context, urls []string) ([]models.RawArticle, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}

	var (
		articles []models.RawArticle
		ok       int
		lastErr  error
	)

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			logger.Warn("failed to parse feed",
				zap.String("url", url),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		ok++

		for _, item := range feed.Items {
			articles = append(articles, convertItem(feed.Title, item))
		}
	}

	logger.Debug("processed RSS feeds",
		zap.Int("ok", ok),
		zap.Int("total", len(urls)),
		zap.Int("items", len(articles)),
	)

	if ok == 0 {
		return nil, fmt.Errorf("all %d feeds failed: %w", len(urls), lastErr)
	}

	return articles, nil
}

func (s *RSSSource) allFeeds() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, list := range s.feeds {
		for _, url := range list {
			if !seen[url] {
				seen[url] = true
				urls = append(urls, url)
			}
		}
	}
	sort.Strings(urls)
	return urls
}

func convertItem(feedTitle string, item *gofeed.Item) models.RawArticle {
	article := models.RawArticle{
		Title:       strings.TrimSpace(item.Title),
		Description: StripHTML(item.Description),
		Content:     StripHTML(item.Content),
		URL:         strings.TrimSpace(item.Link),
		SourceName:  feedTitle,
	}

	if item.PublishedParsed != nil {
		article.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		article.PublishedAt = *item.UpdatedParsed
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		article.Author = item.Authors[0].Name
	}

	if item.Image != nil {
		article.ImageURL = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				article.ImageURL = enc.URL
				break
			}
		}
	}

	return article
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func mentions(article models.RawArticle, topic string) bool {
	if topic == "" {
		return true
	}
	text := strings.ToLower(article.Title + " " + article.Description)
	return strings.Contains(text, topic)
}

func newestFirst(articles []models.RawArticle, limit int) []models.RawArticle {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles
}
