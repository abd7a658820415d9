package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"evening/internal/catalog"
	"evening/internal/session"
)

// sender is the part of the Telegram API the handlers use to talk back
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	out          sender
	token        string
	sessions     *session.Registry
	catalog      *catalog.Catalog
	allowedUsers map[int64]bool
	states       map[int64]*ConversationState
	statesMu     sync.RWMutex
	logger       *zap.Logger

	// Chat that hears about finished stories; 0 disables it
	notificationChatID   int64
	notificationThreadID int
}

// ConversationState tracks the state of multi-step commands.
// mu guards Step and Data while a message is handled.
type ConversationState struct {
	mu      sync.Mutex
	Command string
	Step    int
	Data    map[string]interface{}
}
