package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"evening/internal/models"
	"evening/internal/progress"
	"evening/internal/session"
)

// handleReaderCallback selects a reader, or shows the choice when no key is given
func (b *Bot) handleReaderCallback(ctx context.Context, query *tgbotapi.CallbackQuery, data string) {
	chatID := query.Message.Chat.ID
	state, err := b.session(ctx, query.From.ID)
	if err != nil {
		b.replyError(chatID, "sign in", err)
		return
	}

	if data == "" {
		b.showReaders(ctx, chatID, state)
		return
	}

	key, err := models.ParseReaderKey(data)
	if err != nil {
		b.logger.Warn("Invalid reader in callback",
			zap.Error(err),
			zap.String("callback_data", query.Data),
		)
		b.reply(chatID, "Error: Invalid reader selection")
		return
	}

	state.SelectReader(key)
	b.reply(chatID, fmt.Sprintf("Reading as %s tonight.", readerName(state.Family(), key)))
	b.showTonight(chatID, state)
}

// handleReadCallback sends a story for reading, ending with a "finished" button
func (b *Bot) handleReadCallback(ctx context.Context, query *tgbotapi.CallbackQuery, storyID string) {
	chatID := query.Message.Chat.ID
	story, ok := b.catalog.Story(storyID)
	if !ok {
		b.reply(chatID, "This story is no longer available. Try /browse.")
		return
	}

	if story.ParentContext != "" {
		b.reply(chatID, "👪 For parents: "+story.ParentContext)
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("📖 %s\n\n", story.Title))
	for _, element := range story.Content {
		switch element.Type {
		case models.ContentIllustration:
			// Flush text so the picture lands in place
			if text.Len() > 0 {
				b.reply(chatID, text.String())
				text.Reset()
			}
			b.sendIllustration(chatID, element.Content)
		default:
			text.WriteString(element.Content)
			text.WriteString("\n\n")
		}
	}
	if len(story.ConversationStarters) > 0 {
		text.WriteString("💬 Let's talk about it:\n")
		for _, q := range story.ConversationStarters {
			text.WriteString("• " + q + "\n")
		}
	}

	b.replyWithMarkup(chatID, strings.TrimSpace(text.String()),
		tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ We finished", cbDone+story.ID),
		)))
}

// sendIllustration sends a picture when the reference is a URL, otherwise names it
func (b *Bot) sendIllustration(chatID int64, ref string) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		b.sendMessage(tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(ref)))
		return
	}
	b.reply(chatID, "🖼 "+ref)
}

// handleDoneCallback marks a story completed for the selected reader
func (b *Bot) handleDoneCallback(ctx context.Context, query *tgbotapi.CallbackQuery, storyID string) {
	chatID := query.Message.Chat.ID
	state, err := b.session(ctx, query.From.ID)
	if err != nil {
		b.replyError(chatID, "sign in", err)
		return
	}
	b.finishStory(ctx, chatID, state, storyID)
}

// finishStory records a completion and tells the user what it changed
func (b *Bot) finishStory(ctx context.Context, chatID int64, state *session.State, storyID string) {
	transition, err := state.MarkStoryCompleted(ctx, storyID)
	if errors.Is(err, session.ErrNotSignedIn) {
		b.reply(chatID, "You were signed out, so nothing was recorded. Send /start to sign in again.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to persist completion",
			zap.Error(err),
			zap.String("story_id", storyID),
		)
		b.reply(chatID, "⚠️ I could not save your progress. It is kept until you sign out.")
	}

	story, ok := b.catalog.Story(storyID)
	switch {
	case !ok:
		b.reply(chatID, "This story is no longer in the catalog.")
		return
	case transition == progress.TransitionDuplicate:
		b.reply(chatID, fmt.Sprintf("“%s” was already finished.", story.Title))
	case transition.Changed():
		b.reply(chatID, fmt.Sprintf("🌟 Well done! “%s” is finished. Good night!", story.Title))
		if err == nil {
			b.announce(state.Family(), state.Selection(), story)
		}
	default:
		b.reply(chatID, fmt.Sprintf("Nothing was recorded for “%s”.", story.Title))
	}

	b.showTonight(chatID, state)
}

// announce tells the notification chat about a finished story
func (b *Bot) announce(family *models.Family, reader models.ReaderKey, story models.Story) {
	if b.notificationChatID == 0 {
		return
	}
	text := fmt.Sprintf("🌙 %s finished “%s”", readerName(family, reader), story.Title)
	b.sendMessageInThread(b.notificationChatID, text, b.notificationThreadID)
}

// handleSeriesCallback shows a series with its stories
func (b *Bot) handleSeriesCallback(ctx context.Context, query *tgbotapi.CallbackQuery, seriesID string) {
	chatID := query.Message.Chat.ID
	series, ok := b.catalog.Series(seriesID)
	if !ok {
		b.reply(chatID, "Error: Invalid series selection")
		return
	}

	state, err := b.session(ctx, query.From.ID)
	if err != nil {
		b.replyError(chatID, "sign in", err)
		return
	}

	var completed models.StorySet
	if p, ok := state.Progress().Get(state.Selection()); ok && p.SeriesID == seriesID {
		completed = p.CompletedStories
	}

	stories := b.catalog.StoriesInSeries(seriesID)
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, st := range stories {
		label := fmt.Sprintf("%d. %s", st.Position, st.Title)
		if completed.Has(st.ID) {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbRead+st.ID),
		))
	}

	text := formatSeries(series, len(stories))
	if len(rows) == 0 {
		b.reply(chatID, text+"\n\nNo stories yet.")
		return
	}
	b.replyWithMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}
