package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/selivandex/news-digest/pkg/models"
)

type stubChatClient struct {
	reply string
	err   error
	calls int
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: s.reply}},
		},
	}, nil
}

func TestLLMScorer_ParsesReply(t *testing.T) {
	client := &stubChatClient{reply: "Sure! {\"label\": \"Negative\", \"score\": 0.1}"}
	scorer := NewLLMScorer(client, "", NeutralScorer{})

	got, err := scorer.Score(context.Background(), "Markets tumble")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.Label != models.SentimentNegative {
		t.Errorf("Expected negative, got %s", got.Label)
	}
	if got.Score != 0.1 {
		t.Errorf("Expected score 0.1, got %.2f", got.Score)
	}
}

func TestLLMScorer_FallsBackOnError(t *testing.T) {
	client := &stubChatClient{err: errors.New("rate limited")}
	scorer := NewLLMScorer(client, openai.GPT4oMini, NewAnalyzer())

	got, err := scorer.Score(context.Background(), "Amazing breakthrough")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.Label != models.SentimentPositive {
		t.Errorf("Expected keyword fallback to say positive, got %s", got.Label)
	}
}

func TestLLMScorer_FallsBackOnGarbage(t *testing.T) {
	for _, reply := range []string{"no idea", `{"label": "ecstatic", "score": 1}`, `{"label": }`} {
		client := &stubChatClient{reply: reply}
		scorer := NewLLMScorer(client, "", NeutralScorer{})

		got, _ := scorer.Score(context.Background(), "Some headline")
		if got != models.NeutralSentiment() {
			t.Errorf("Expected neutral fallback for reply %q, got %+v", reply, got)
		}
	}
}

func TestLLMScorer_SkipsEmptyText(t *testing.T) {
	client := &stubChatClient{reply: `{"label": "positive", "score": 0.9}`}
	scorer := NewLLMScorer(client, "", NeutralScorer{})

	got, _ := scorer.Score(context.Background(), "   ")
	if got.Label != models.SentimentNeutral {
		t.Errorf("Expected neutral for empty text, got %s", got.Label)
	}
	if client.calls != 0 {
		t.Errorf("Expected no API calls for empty text, got %d", client.calls)
	}
}

func TestParseLLMReply_ClampsScore(t *testing.T) {
	got, err := parseLLMReply(`{"label": "positive", "score": 3}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Score != 1 {
		t.Errorf("Expected score clamped to 1, got %.2f", got.Score)
	}
}

type blockingChatClient struct{}

func (blockingChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	<-ctx.Done()
	return openai.ChatCompletionResponse{}, ctx.Err()
}

func TestLLMScorer_TimeoutFallsBack(t *testing.T) {
	scorer := NewLLMScorer(blockingChatClient{}, "", NeutralScorer{}).WithTimeout(50 * time.Millisecond)

	start := time.Now()
	got, err := scorer.Score(context.Background(), "Markets rally")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected model call to time out quickly, took %v", elapsed)
	}
	if got.Label != models.SentimentNeutral {
		t.Errorf("Expected fallback neutral label, got %s", got.Label)
	}
}
