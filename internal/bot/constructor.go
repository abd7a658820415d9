package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"evening/internal/catalog"
	"evening/internal/session"
)

// NewBot creates a new Telegram bot
func NewBot(token string, sessions *session.Registry, cat *catalog.Catalog, allowedUserIDs []int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := newBot(sessions, cat, allowedUserIDs, logger)
	b.api = api
	b.out = api
	b.token = token
	return b, nil
}

func newBot(sessions *session.Registry, cat *catalog.Catalog, allowedUserIDs []int64, logger *zap.Logger) *Bot {
	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	return &Bot{
		sessions:     sessions,
		catalog:      cat,
		allowedUsers: allowedUsers,
		states:       make(map[int64]*ConversationState),
		logger:       logger,
	}
}

// SetNotificationTarget makes the bot announce finished stories in a chat,
// optionally inside a forum topic
func (b *Bot) SetNotificationTarget(chatID int64, threadID int) {
	b.notificationChatID = chatID
	b.notificationThreadID = threadID
}
