package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"evening/internal/models"
	"evening/internal/session"
)

const memoriesLimit = 10

// handleStart signs the user in and shows available commands
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	state, err := b.session(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, "sign in", err)
		return
	}

	var text strings.Builder
	text.WriteString("Welcome to Evening Stories! 🌙\n\n")
	if !state.Gate().Onboarded {
		text.WriteString("Start by telling me about your child with /add_child.\n\n")
	}
	text.WriteString(`Available commands:
/tonight - Tonight's story
/reader - Choose who is reading tonight
/add_child - Register a child
/children - Show your family and plan
/browse - Browse series (e.g. /browse courage or /browse 4)
/progress - Reading progress of every reader
/memories - Last 10 stories you read together
/signout - Sign out`)

	b.reply(message.Chat.ID, text.String())
}

// handleTonight shows the evening suggestion for the selected reader
func (b *Bot) handleTonight(ctx context.Context, message *tgbotapi.Message) {
	state, err := b.session(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, "sign in", err)
		return
	}
	b.showTonight(message.Chat.ID, state)
}

// showTonight renders the suggestion, or the empty state when there is none
func (b *Bot) showTonight(chatID int64, state *session.State) {
	suggestion := state.Suggestion()
	if suggestion == nil {
		if !state.Gate().Onboarded {
			b.reply(chatID, "Add your child with /add_child and I will pick tonight's story.")
			return
		}
		b.replyWithMarkup(chatID, "I have no story to suggest tonight. Have a look at the catalog instead.",
			tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📚 Browse", cbBrowse),
			)))
		return
	}

	text := formatSuggestion(suggestion, state.Family(), state.Selection())
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 Read now", cbRead+suggestion.StoryID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Change reader", cbReader),
			tgbotapi.NewInlineKeyboardButtonData("📚 Browse", cbBrowse),
		),
	)
	b.replyWithMarkup(chatID, text, markup)
}

// handleReader lets the user choose a child or family mode
func (b *Bot) handleReader(ctx context.Context, message *tgbotapi.Message) {
	state, err := b.session(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, "sign in", err)
		return
	}
	b.showReaders(ctx, message.Chat.ID, state)
}

func (b *Bot) showReaders(ctx context.Context, chatID int64, state *session.State) {
	family := state.Family()
	var children []models.Child
	if family != nil {
		children = family.Children
	}

	// Suggest whose turn it is from the last shared memory
	last := models.ReaderKey{}
	hasLast := false
	if events, err := state.Memories(ctx, 1); err == nil && len(events) > 0 {
		last, hasLast = events[0].Reader, true
	}
	next := NextReader(children, last, hasLast)

	selected := state.Selection()
	keys := []models.ReaderKey{models.FamilyReader()}
	for _, c := range children {
		keys = append(keys, models.ChildReader(c.ID))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, key := range keys {
		label := readerName(family, key)
		if key == selected {
			label = "✓ " + label
		}
		if key == next {
			label += " ⭐"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbReader+key.String()),
		))
	}

	text := "👤 Who is reading tonight?"
	if len(children) > 0 {
		text += "\n⭐ marks whose turn it is."
	}
	b.replyWithMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleAddChildStart initiates the add child conversation
func (b *Bot) handleAddChildStart(ctx context.Context, message *tgbotapi.Message) {
	state, err := b.session(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, "sign in", err)
		return
	}

	sub := state.Subscription()
	family := state.Family()
	if !sub.CanAddChild(family) {
		// Limits are informational only
		b.reply(message.Chat.ID, fmt.Sprintf("Note: your %s plan includes up to %d children.", sub.Plan, sub.MaxChildren))
	}

	b.setState(message.From.ID, &ConversationState{
		Command: "add_child",
		Step:    1,
		Data:    make(map[string]interface{}),
	})
	b.reply(message.Chat.ID, "What is your child's name?")
}

// handleChildren lists the family and the plan limits
func (b *Bot) handleChildren(ctx context.Context, message *tgbotapi.Message) {
	state, err := b.session(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, "sign in", err)
		return
	}

	family := state.Family()
	sub := state.Subscription()

	var text strings.Builder
	if family == nil || len(family.Children) == 0 {
		text.WriteString("No children registered yet. Use /add_child to add one.\n\n")
	} else {
		text.WriteString("👨‍👩‍👧 Your family:\n\n")
		for i, c := range family.Children {
			text.WriteString(fmt.Sprintf("%d. %s (%d)\n", i+1, c.Name, c.Age))
		}
		for _, m := range family.Members {
			text.WriteString(fmt.Sprintf("• %s - %s\n", m.Name, m.Role))
		}
		text.WriteString("\n")
	}

	children := 0
	if family != nil {
		children = len(family.Children)
	}
	text.WriteString(fmt.Sprintf("Plan: %s, %d/%d children", sub.Plan, children, sub.MaxChildren))
	if !sub.ExpiresAt.IsZero() {
		text.WriteString(fmt.Sprintf(", until %s", sub.ExpiresAt.Format("2006-01-02")))
	}

	b.reply(message.Chat.ID, text.String())
}

// handleBrowse lists series matching a query; an empty query lists them all
func (b *Bot) handleBrowse(ctx context.Context, chatID int64, query string) {
	query = strings.TrimSpace(query)
	series := b.catalog.Search(query)
	if len(series) == 0 {
		if query == "" {
			b.reply(chatID, "The catalog is empty.")
		} else {
			b.reply(chatID, fmt.Sprintf("No series match %q.", query))
		}
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range series {
		label := fmt.Sprintf("%s (%d-%d)", s.Title, s.AgeRange.Min, s.AgeRange.Max)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbSeries+s.ID),
		))
	}

	text := "📚 Series:"
	if query != "" {
		text = fmt.Sprintf("📚 Series matching %q:", query)
	}
	b.replyWithMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleProgress shows each reader's current series
func (b *Bot) handleProgress(ctx context.Context, message *tgbotapi.Message) {
	state, err := b.session(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, "sign in", err)
		return
	}

	store := state.Progress()
	if store.Len() == 0 {
		b.reply(message.Chat.ID, "No stories finished yet. Start with /tonight.")
		return
	}

	family := state.Family()
	var text strings.Builder
	text.WriteString("📈 Reading progress:\n\n")
	for _, key := range store.Keys() {
		p, _ := store.Get(key)
		text.WriteString(formatProgress(b.catalog, readerName(family, key), p))
		text.WriteString("\n")
	}

	b.reply(message.Chat.ID, text.String())
}

// handleMemories shows the last reading events
func (b *Bot) handleMemories(ctx context.Context, message *tgbotapi.Message) {
	state, err := b.session(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, "sign in", err)
		return
	}

	events, err := state.Memories(ctx, memoriesLimit)
	if err != nil {
		b.replyError(message.Chat.ID, "load memories", err)
		return
	}

	if len(events) == 0 {
		b.reply(message.Chat.ID, "No stories read yet.")
		return
	}

	var text strings.Builder
	text.WriteString("💫 Shared memories:\n\n")
	for i, event := range events {
		text.WriteString(fmt.Sprintf("%d. %s\n", i+1, formatEvent(event)))
	}

	b.reply(message.Chat.ID, text.String())
}

// handleSignOut forgets everything loaded for the user
func (b *Bot) handleSignOut(message *tgbotapi.Message) {
	b.sessions.SignOut(accountID(message.From.ID))
	b.clearState(message.From.ID)
	b.reply(message.Chat.ID, "Signed out. Send /start to sign in again.")
}
