package models

import "time"

// Sentiment labels produced by scorers
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// RawArticle is a provider-shaped record. Any field may be empty.
type RawArticle struct {
	PublishedAt time.Time `json:"publishedAt"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"urlToImage"`
	SourceName  string    `json:"sourceName"`
}

// Article is a quality-checked article delivered to users. URL is the identity key.
type Article struct {
	PublishedAt    time.Time `json:"published_at"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Content        string    `json:"content,omitempty"`
	Author         string    `json:"author,omitempty"`
	URL            string    `json:"url"`
	ImageURL       string    `json:"image_url,omitempty"`
	Source         string    `json:"source"`
	Sentiment      string    `json:"sentiment"`
	Category       string    `json:"category"`
	SentimentScore float64   `json:"sentiment_score"`
}

// ToArticle converts a raw record into an untagged Article
func (r RawArticle) ToArticle() Article {
	return Article{
		PublishedAt: r.PublishedAt,
		Title:       r.Title,
		Description: r.Description,
		Content:     r.Content,
		Author:      r.Author,
		URL:         r.URL,
		ImageURL:    r.ImageURL,
		Source:      r.SourceName,
	}
}

// AnalysisText is the text scored for sentiment and category
func (a *Article) AnalysisText() string {
	return a.Title + " " + a.Description
}

// Sentiment is the result of scoring a piece of text
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"` // 0..1, 0.5 is neutral
}

// NeutralSentiment is used whenever a scorer cannot produce a result
func NeutralSentiment() Sentiment {
	return Sentiment{Label: SentimentNeutral, Score: 0.5}
}
