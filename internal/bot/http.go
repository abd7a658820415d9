package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"evening/internal/models"
	"evening/internal/progress"
)

const initDataMaxAge = 24 * time.Hour

type ctxKey struct{}

// HTTPServer handles HTTP requests for the Mini App
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), trust the user id header for easier local dev
	now         func() time.Time
}

// NewHTTPServer creates a new HTTP server for the Mini App
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
		now:         time.Now,
	}
}

// RegisterRoutes registers Mini App routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/suggestion", hs.authMiddleware(hs.handleSuggestion))
	mux.HandleFunc("/api/series", hs.authMiddleware(hs.handleSeries))
	mux.HandleFunc("/api/reader", hs.authMiddleware(hs.handleReader))
	mux.HandleFunc("/api/complete", hs.authMiddleware(hs.handleComplete))
}

// validateTelegramInitData validates the Telegram Mini App initData and returns the user id
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	// Parse the initData
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	// Extract hash
	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}
	values.Del("hash")

	// Create data-check-string
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	// Create secret key
	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(hs.bot.token))
	secret := secretKey.Sum(nil)

	// Calculate hash
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataCheckString.String()))
	calculatedHash := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(calculatedHash), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	// Data should be recent
	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing or invalid auth_date")
	}
	if hs.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	// Extract user ID
	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}

	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}

	return userData.ID, nil
}

// authenticate resolves the Telegram user of a request
func (hs *HTTPServer) authenticate(r *http.Request) (int64, error) {
	if !hs.webhookMode {
		// Local development: trust the header
		userID, err := strconv.ParseInt(r.Header.Get("X-Telegram-User-ID"), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("missing or invalid X-Telegram-User-ID header")
		}
		return userID, nil
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "tma ") {
		return 0, fmt.Errorf("missing or invalid authorization header")
	}
	return hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
}

// authMiddleware authenticates the request and checks the user is allowed
func (hs *HTTPServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := hs.authenticate(r)
		if err != nil {
			hs.bot.logger.Warn("Failed to authenticate request",
				zap.Error(err),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if !hs.bot.allowedUsers[userID] {
			hs.bot.logger.Warn("Request from user that is not allowed",
				zap.Int64("user_id", userID),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	}
}

func userFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKey{}).(int64)
	return id
}

// SuggestionResponse is the body of GET /api/suggestion
type SuggestionResponse struct {
	Reader     models.ReaderKey          `json:"reader"`
	ReaderName string                    `json:"reader_name"`
	Onboarded  bool                      `json:"onboarded"`
	Suggestion *models.EveningSuggestion `json:"suggestion"`
}

// handleSuggestion returns tonight's suggestion for the selected reader
func (hs *HTTPServer) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state, err := hs.bot.session(r.Context(), userFromContext(r.Context()))
	if err != nil {
		hs.bot.logger.Error("Failed to load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	reader := state.Selection()
	writeJSON(w, http.StatusOK, SuggestionResponse{
		Reader:     reader,
		ReaderName: readerName(state.Family(), reader),
		Onboarded:  state.Gate().Onboarded,
		Suggestion: state.Suggestion(),
	})
}

// handleSeries returns series matching the q parameter
func (hs *HTTPServer) handleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	series := hs.bot.catalog.Search(r.URL.Query().Get("q"))
	if series == nil {
		series = []models.Series{}
	}
	writeJSON(w, http.StatusOK, series)
}

// SelectReaderRequest is the body of POST /api/reader
type SelectReaderRequest struct {
	Reader models.ReaderKey `json:"reader"`
}

// handleReader changes the selected reader
func (hs *HTTPServer) handleReader(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SelectReaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		hs.bot.logger.Warn("Failed to decode request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := hs.bot.session(r.Context(), userFromContext(r.Context()))
	if err != nil {
		hs.bot.logger.Error("Failed to load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	state.SelectReader(req.Reader)
	writeJSON(w, http.StatusOK, SuggestionResponse{
		Reader:     req.Reader,
		ReaderName: readerName(state.Family(), req.Reader),
		Onboarded:  state.Gate().Onboarded,
		Suggestion: state.Suggestion(),
	})
}

// CompleteRequest is the body of POST /api/complete
type CompleteRequest struct {
	StoryID string `json:"story_id"`
}

// CompleteResponse reports what a completion did and what comes next
type CompleteResponse struct {
	Transition string                    `json:"transition"`
	Progress   *models.ReadingProgress   `json:"progress,omitempty"`
	Suggestion *models.EveningSuggestion `json:"suggestion"`
}

// handleComplete marks a story finished for the selected reader
func (hs *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		hs.bot.logger.Warn("Failed to decode request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StoryID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	state, err := hs.bot.session(r.Context(), userFromContext(r.Context()))
	if err != nil {
		hs.bot.logger.Error("Failed to load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	transition, err := state.MarkStoryCompleted(r.Context(), req.StoryID)
	if err != nil {
		hs.bot.logger.Error("Failed to persist completion",
			zap.Error(err),
			zap.String("story_id", req.StoryID),
		)
		writeError(w, http.StatusInternalServerError, "Failed to save progress")
		return
	}

	if transition.Changed() {
		if story, ok := hs.bot.catalog.Story(req.StoryID); ok {
			hs.bot.announce(state.Family(), state.Selection(), story)
		}
	}

	writeJSON(w, http.StatusOK, CompleteResponse{
		Transition: transition.String(),
		Progress:   progressOf(state.Progress(), state.Selection()),
		Suggestion: state.Suggestion(),
	})
}

func progressOf(store progress.Store, key models.ReaderKey) *models.ReadingProgress {
	p, ok := store.Get(key)
	if !ok {
		return nil
	}
	return &p
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
