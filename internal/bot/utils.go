package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"evening/internal/session"
)

// accountID maps a Telegram user to the account key used by sessions and storage
func accountID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// session returns the signed-in state of a Telegram user
func (b *Bot) session(ctx context.Context, userID int64) (*session.State, error) {
	return b.sessions.Get(ctx, accountID(userID))
}

// sendMessage sends any Telegram message, logging failures
func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if b.out == nil {
		return // For testing
	}
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}

// reply sends plain text to a chat
func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// replyWithMarkup sends text with an inline keyboard
func (b *Bot) replyWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.sendMessage(msg)
}

// sendMessageInThread sends a message to a specific thread/topic in a group
func (b *Bot) sendMessageInThread(chatID int64, text string, messageThreadID int) {
	if b.out == nil {
		return // For testing
	}
	if messageThreadID == 0 {
		b.reply(chatID, text)
		return
	}

	// The v5 message config has no thread field, so the request is built by hand
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonEmpty("text", text)
	params.AddNonZero("message_thread_id", messageThreadID)

	if _, err := b.out.MakeRequest("sendMessage", params); err != nil {
		b.logger.Error("Failed to send message in thread",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("thread_id", messageThreadID),
		)
	}
}

// answerCallback removes the loading state of an inline button
func (b *Bot) answerCallback(queryID, text string) {
	if b.out == nil {
		return
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) getState(userID int64) (*ConversationState, bool) {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	state, ok := b.states[userID]
	return state, ok
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = state
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.states, userID)
}

// finishState forgets a finished conversation unless a newer one replaced it
func (b *Bot) finishState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	if b.states[userID] == state {
		delete(b.states, userID)
	}
}
