package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	maxNameLength = 40
	maxChildAge   = 17
)

// handleConversation processes multi-step conversations. It reports false when
// another message already finished the conversation.
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) bool {
	state.mu.Lock()
	defer state.mu.Unlock()

	userID := message.From.ID
	if state.Step == -1 {
		b.finishState(userID, state)
		return false
	}

	switch state.Command {
	case "add_child":
		b.handleAddChildConversation(ctx, message, state)
	}

	// Clean up completed conversations
	if state.Step == -1 {
		b.finishState(userID, state)
	}
	return true
}

// handleAddChildConversation handles the add child multi-step process
func (b *Bot) handleAddChildConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1: // Waiting for the name
		name := strings.TrimSpace(message.Text)
		if name == "" || len([]rune(name)) > maxNameLength {
			b.reply(message.Chat.ID, fmt.Sprintf("Please send a name of up to %d letters.", maxNameLength))
			return
		}

		state.Data["name"] = name
		state.Step = 2
		b.reply(message.Chat.ID, fmt.Sprintf("How old is %s?", name))

	case 2: // Waiting for the age
		age, err := strconv.Atoi(strings.TrimSpace(message.Text))
		if err != nil || age < 0 || age > maxChildAge {
			b.reply(message.Chat.ID, fmt.Sprintf("❌ Invalid age. Please send a number between 0 and %d.", maxChildAge))
			return
		}

		name := state.Data["name"].(string)
		session, err := b.session(ctx, message.From.ID)
		if err != nil {
			b.replyError(message.Chat.ID, "sign in", err)
			state.Step = -1
			return
		}

		child, err := session.AddChild(ctx, name, age)
		if err != nil {
			b.logger.Error("Failed to add child",
				zap.Error(err),
				zap.Int64("user_id", message.From.ID),
			)
			b.reply(message.Chat.ID, fmt.Sprintf("Error adding child: %v", err))
			state.Step = -1
			return
		}

		// One child is enough to finish onboarding
		session.CompleteOnboarding()

		b.reply(message.Chat.ID, fmt.Sprintf("✅ %s (%d) joined the family!", child.Name, child.Age))
		b.showTonight(message.Chat.ID, session)

		state.Step = -1 // Mark conversation as complete
	}
}
