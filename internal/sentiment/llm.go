package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const llmSystemPrompt = `You classify the sentiment of news headlines.
Reply with JSON only: {"label": "positive" | "negative" | "neutral", "score": <number 0..1>}.
score is 1 for clearly positive, 0 for clearly negative, 0.5 for neutral.`

// ChatClient is the part of the OpenAI client used by LLMScorer
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// DefaultLLMTimeout bounds a single model call
const DefaultLLMTimeout = 5 * time.Second

// NewOpenAIClient creates an OpenAI chat client whose HTTP requests give up
// after timeout
func NewOpenAIClient(apiKey string, timeout time.Duration) *openai.Client {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientConfig)
}

// LLMScorer asks a chat model for the sentiment and falls back to another
// scorer when the model is unavailable or replies with garbage.
type LLMScorer struct {
	client   ChatClient
	model    string
	fallback Scorer
	timeout  time.Duration
}

// NewLLMScorer creates new LLM-backed scorer
func NewLLMScorer(client ChatClient, model string, fallback Scorer) *LLMScorer {
	if model == "" {
		model = openai.GPT4oMini
	}
	if fallback == nil {
		fallback = NeutralScorer{}
	}
	return &LLMScorer{client: client, model: model, fallback: fallback, timeout: DefaultLLMTimeout}
}

// WithTimeout sets how long a single model call may take before the
// fallback scorer answers instead
func (s *LLMScorer) WithTimeout(timeout time.Duration) *LLMScorer {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

func (s *LLMScorer) Name() string {
	return "llm"
}

func (s *LLMScorer) Score(ctx context.Context, text string) (models.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return models.NeutralSentiment(), nil
	}

	askCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.ask(askCtx, text)
	cancel()
	if err != nil {
		logger.Warn("llm sentiment failed, using fallback scorer",
			zap.String("fallback", s.fallback.Name()),
			zap.Error(err),
		)
		return s.fallback.Score(ctx, text)
	}

	return result, nil
}

func (s *LLMScorer) ask(ctx context.Context, text string) (models.Sentiment, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		MaxTokens:   50,
	})
	if err != nil {
		return models.Sentiment{}, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return models.Sentiment{}, fmt.Errorf("no choices in response")
	}

	return parseLLMReply(resp.Choices[0].Message.Content)
}

// parseLLMReply extracts the JSON object from a model reply
func parseLLMReply(content string) (models.Sentiment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return models.Sentiment{}, fmt.Errorf("no JSON object in reply: %q", content)
	}

	var reply struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return models.Sentiment{}, fmt.Errorf("failed to decode reply: %w", err)
	}

	label := strings.ToLower(strings.TrimSpace(reply.Label))
	switch label {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		return models.Sentiment{}, fmt.Errorf("unexpected label %q", reply.Label)
	}

	score := reply.Score
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	return models.Sentiment{Label: label, Score: score}, nil
}
