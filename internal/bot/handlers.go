package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback data prefixes of the inline keyboards
const (
	cbReader = "reader:"
	cbRead   = "read:"
	cbDone   = "done:"
	cbSeries = "series:"
	cbBrowse = "browse:"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage",
				zap.Any("panic", r),
				zap.Int64("user_id", message.From.ID),
			)
			b.reply(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	// Check if user is in a conversation
	if state, ok := b.getState(userID); ok {
		if message.IsCommand() {
			// Any command interrupts an ongoing conversation
			b.clearState(userID)
		} else if b.handleConversation(ctx, message, state) {
			return
		}
	}

	if !message.IsCommand() {
		b.reply(message.Chat.ID, "Send /tonight to get tonight's story or /start to see all commands.")
		return
	}

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "tonight":
		b.handleTonight(ctx, message)
	case "reader":
		b.handleReader(ctx, message)
	case "add_child":
		b.handleAddChildStart(ctx, message)
	case "children":
		b.handleChildren(ctx, message)
	case "browse":
		b.handleBrowse(ctx, message.Chat.ID, message.CommandArguments())
	case "progress":
		b.handleProgress(ctx, message)
	case "memories":
		b.handleMemories(ctx, message)
	case "signout":
		b.handleSignOut(message)
	default:
		b.reply(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery",
				zap.Any("panic", r),
				zap.String("callback_data", query.Data),
			)
		}
	}()

	// Answer the callback query to remove loading state
	b.answerCallback(query.ID, "")

	if query.Message == nil {
		return
	}

	ctx := context.Background()
	data := query.Data
	switch {
	case strings.HasPrefix(data, cbReader):
		b.handleReaderCallback(ctx, query, strings.TrimPrefix(data, cbReader))
	case strings.HasPrefix(data, cbRead):
		b.handleReadCallback(ctx, query, strings.TrimPrefix(data, cbRead))
	case strings.HasPrefix(data, cbDone):
		b.handleDoneCallback(ctx, query, strings.TrimPrefix(data, cbDone))
	case strings.HasPrefix(data, cbSeries):
		b.handleSeriesCallback(ctx, query, strings.TrimPrefix(data, cbSeries))
	case strings.HasPrefix(data, cbBrowse):
		b.handleBrowse(ctx, query.Message.Chat.ID, strings.TrimPrefix(data, cbBrowse))
	default:
		b.logger.Warn("Unknown callback data",
			zap.String("callback_data", data),
			zap.Int64("user_id", query.From.ID),
		)
	}
}

// replyError logs an error and tells the user something went wrong
func (b *Bot) replyError(chatID int64, what string, err error) {
	b.logger.Error("Failed to "+what, zap.Error(err), zap.Int64("chat_id", chatID))
	b.reply(chatID, fmt.Sprintf("Error: failed to %s. Please try again.", what))
}
