package sentiment

import (
	"context"
	"fmt"
	"time"

	"github.com/selivandex/news-digest/pkg/models"
)

// Label thresholds on the 0..1 score
const (
	positiveThreshold = 0.6
	negativeThreshold = 0.4
)

// Scorer labels text as positive, negative or neutral with a score in [0,1]
type Scorer interface {
	Name() string
	Score(ctx context.Context, text string) (models.Sentiment, error)
}

// Options configures scorer selection
type Options struct {
	Strategy  string // keyword, llm or none
	OpenAIKey string
	Model     string
	Timeout   time.Duration // per model call, llm only
}

// New builds the scorer selected by opts.Strategy
func New(opts Options) (Scorer, error) {
	switch opts.Strategy {
	case "", "keyword":
		return NewAnalyzer(), nil
	case "none":
		return NeutralScorer{}, nil
	case "llm":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("llm scorer requires an openai api key")
		}
		client := NewOpenAIClient(opts.OpenAIKey, opts.Timeout)
		return NewLLMScorer(client, opts.Model, NewAnalyzer()).WithTimeout(opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown sentiment strategy %q", opts.Strategy)
	}
}

// LabelFor maps a 0..1 score onto a label
func LabelFor(score float64) string {
	switch {
	case score > positiveThreshold:
		return models.SentimentPositive
	case score < negativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// NeutralScorer labels everything neutral
type NeutralScorer struct{}

func (NeutralScorer) Name() string {
	return "none"
}

func (NeutralScorer) Score(ctx context.Context, text string) (models.Sentiment, error) {
	return models.NeutralSentiment(), nil
}
