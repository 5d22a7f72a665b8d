package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/preferences"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const (
	commandTimeout = 60 * time.Second
	maxMessageLen  = 4000
)

// Digests builds digests and clears the seen memory
type Digests interface {
	FetchDigest(ctx context.Context, userID int64, prefs models.Preferences) []models.Article
	ClearCache(userID int64)
}

// Reading exposes stored preferences and reading stats
type Reading interface {
	Preferences(ctx context.Context, userID int64) (models.Preferences, error)
	Stats(ctx context.Context, userID int64) (models.ReadingStats, error)
}

// Adjuster rewrites preferences from reading history
type Adjuster interface {
	AutoAdjust(ctx context.Context, userID int64) (preferences.AdjustResult, error)
}

// UserLookup resolves the user linked to a chat
type UserLookup interface {
	GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
}

// Sender sends messages; *tgbotapi.BotAPI satisfies it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot answers digest commands in chats linked to a user
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	users    UserLookup
	digests  Digests
	reading  Reading
	adjuster Adjuster
}

// NewBot creates new Telegram bot
func NewBot(token string, users UserLookup, digests Digests, reading Reading, adjuster Adjuster) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	api.Debug = false

	logger.Info("telegram bot initialized",
		zap.String("username", api.Self.UserName),
	)

	bot := newBot(api, users, digests, reading, adjuster)
	bot.api = api
	return bot, nil
}

func newBot(sender Sender, users UserLookup, digests Digests, reading Reading, adjuster Adjuster) *Bot {
	return &Bot{
		sender:   sender,
		users:    users,
		digests:  digests,
		reading:  reading,
		adjuster: adjuster,
	}
}

// Start listens for commands until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	logger.Info("telegram bot started, listening for commands")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()

		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			go b.handleCommand(ctx, update.Message.Chat.ID, update.Message.Command())
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command string) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	text := b.reply(ctx, chatID, command)
	b.send(chatID, text)
}

// reply builds the answer to a command
func (b *Bot) reply(ctx context.Context, chatID int64, command string) string {
	if command == "start" || command == "help" {
		return helpText(chatID)
	}

	user, err := b.users.GetUserByTelegramChatID(ctx, chatID)
	if err != nil {
		logger.Error("failed to resolve chat user",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return "Something went wrong, please try again later."
	}
	if user == nil {
		return helpText(chatID)
	}

	switch command {
	case "digest":
		return b.digest(ctx, user.ID, false)
	case "refresh":
		return b.digest(ctx, user.ID, true)
	case "stats":
		return b.stats(ctx, user.ID)
	case "adjust":
		return b.adjust(ctx, user.ID)
	default:
		return "Unknown command. Try /digest, /refresh, /stats or /adjust."
	}
}

func (b *Bot) digest(ctx context.Context, userID int64, refresh bool) string {
	prefs, err := b.reading.Preferences(ctx, userID)
	if err != nil {
		logger.Error("failed to load preferences", zap.Int64("user_id", userID), zap.Error(err))
		return "Could not load your preferences, please try again later."
	}

	if refresh {
		b.digests.ClearCache(userID)
	}

	return FormatDigest(b.digests.FetchDigest(ctx, userID, prefs))
}

func (b *Bot) stats(ctx context.Context, userID int64) string {
	stats, err := b.reading.Stats(ctx, userID)
	if err != nil {
		logger.Error("failed to load stats", zap.Int64("user_id", userID), zap.Error(err))
		return "Could not load your stats, please try again later."
	}

	return fmt.Sprintf("📊 Articles read\nToday: %d\nThis week: %d\nTotal: %d", stats.Today, stats.Week, stats.Total)
}

func (b *Bot) adjust(ctx context.Context, userID int64) string {
	result, err := b.adjuster.AutoAdjust(ctx, userID)
	if errors.Is(err, preferences.ErrUserNotFound) {
		return helpText(0)
	}
	if err != nil {
		logger.Error("auto-adjust failed", zap.Int64("user_id", userID), zap.Error(err))
		return "Could not adjust your preferences, please try again later."
	}

	if !result.Adjusted {
		return "Not adjusted: " + result.Reason
	}

	return fmt.Sprintf("✅ Preferences adjusted\nInterests: %s\nSentiment: %s",
		strings.Join(result.Interests, ", "), result.SentimentFilter)
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := b.sender.Send(msg); err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

func helpText(chatID int64) string {
	text := "📰 News digest bot\n\n" +
		"/digest - articles you have not seen yet\n" +
		"/refresh - forget what was shown and start over\n" +
		"/stats - how much you have read\n" +
		"/adjust - tune interests from your reading"
	if chatID != 0 {
		text += fmt.Sprintf("\n\nLink this chat to your account with chat id %d.", chatID)
	}
	return text
}

// FormatDigest renders articles as a plain text message that fits Telegram's
// size limit
func FormatDigest(articles []models.Article) string {
	if len(articles) == 0 {
		return "No new articles right now. Try /refresh to see earlier ones again."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📰 Your digest (%d)\n", len(articles))

	for i, article := range articles {
		entry := fmt.Sprintf("\n%d. %s\n%s · %s · %s\n%s\n",
			i+1, article.Title, sourceName(article), article.Category, article.Sentiment, article.URL)

		if sb.Len()+len(entry) > maxMessageLen {
			fmt.Fprintf(&sb, "\n…and %d more", len(articles)-i)
			break
		}
		sb.WriteString(entry)
	}

	return sb.String()
}

func sourceName(article models.Article) string {
	if article.Source == "" {
		return "unknown source"
	}
	return article.Source
}
