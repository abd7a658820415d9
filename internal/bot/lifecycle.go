package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	pollTimeout    = 60
	maxConnections = 40
)

// commandMenu is what Telegram shows under the "/" button
var commandMenu = []tgbotapi.BotCommand{
	{Command: "tonight", Description: "Tonight's story"},
	{Command: "reader", Description: "Choose who is reading"},
	{Command: "add_child", Description: "Register a child"},
	{Command: "children", Description: "Your family and plan"},
	{Command: "browse", Description: "Browse series"},
	{Command: "progress", Description: "Reading progress"},
	{Command: "memories", Description: "Stories read together"},
	{Command: "signout", Description: "Sign out"},
}

// registerCommands publishes the command menu; failures only cost the menu
func (b *Bot) registerCommands() {
	if _, err := b.out.Request(tgbotapi.NewSetMyCommands(commandMenu...)); err != nil {
		b.logger.Warn("Failed to register bot commands", zap.Error(err))
	}
}

// Start polls Telegram for updates and blocks until Stop is called
func (b *Bot) Start() error {
	b.logger.Info("Starting bot in polling mode")

	// A leftover webhook would make getUpdates fail
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}
	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout

	b.logger.Info("Waiting for updates")
	for update := range b.api.GetUpdatesChan(u) {
		b.HandleWebhookUpdate(update)
	}

	b.logger.Info("Stopped polling")
	return nil
}

// Stop stops polling for updates
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
}

// StartWebhook points Telegram at our /telegram-webhook endpoint
func (b *Bot) StartWebhook(baseURL string) error {
	webhookURL := baseURL + "/telegram-webhook"
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("failed to build webhook config: %w", err)
	}
	webhookConfig.MaxConnections = maxConnections

	if _, err := b.api.Request(webhookConfig); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.registerCommands()

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
		return nil
	}
	if info.LastErrorMessage != "" {
		b.logger.Warn("Telegram reports webhook errors",
			zap.String("last_error", info.LastErrorMessage),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}
	b.logger.Info("Webhook set",
		zap.String("url", info.URL),
		zap.Int("pending_updates", info.PendingUpdateCount),
	)
	return nil
}

// HandleWebhookUpdate routes one update from either polling or the webhook
func (b *Bot) HandleWebhookUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		if !b.authorized(update.Message.From, "message") {
			b.reply(update.Message.Chat.ID, "Sorry, you are not authorized to use this bot.")
			return
		}
		b.handleMessage(update.Message)

	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		// Unknown users get no answer, so their button keeps spinning
		if !b.authorized(update.CallbackQuery.From, "callback") {
			return
		}
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

func (b *Bot) authorized(user *tgbotapi.User, kind string) bool {
	if b.allowedUsers[user.ID] {
		return true
	}
	b.logger.Warn("Unauthorized access attempt",
		zap.String("kind", kind),
		zap.Int64("user_id", user.ID),
		zap.String("username", user.UserName),
		zap.String("first_name", user.FirstName),
	)
	return false
}
